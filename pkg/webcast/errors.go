package webcast

import "github.com/pkg/errors"

var ErrUserOffline = errors.New("user is not live")
var ErrMissingSessionID = errors.New("a session id is required for this request")
var ErrSubInfoFetch = errors.New("sub info fetch failed")
