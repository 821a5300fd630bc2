package roomsession

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	Create(session *Session) error
	Finish(id string, endedAt time.Time, peakClients int, eventsForwarded uint64) error
	Get(id string) (*Session, error)
}

type Repo struct {
	ctx    context.Context
	client *dynamodb.Client

	tableName *string
}

func NewRepository(ctx context.Context, client *dynamodb.Client, tableName string) *Repo {
	return &Repo{
		ctx:       ctx,
		client:    client,
		tableName: aws.String(tableName),
	}
}

func (r *Repo) Create(session *Session) error {
	marshaled, err := attributevalue.MarshalMap(session)
	if err != nil {
		return errors.Wrap(err, "marshal failed")
	}

	_, err = r.client.PutItem(r.ctx, &dynamodb.PutItemInput{
		TableName: r.tableName,
		Item:      marshaled,
	})
	if err != nil {
		return errors.Wrap(err, "put failed")
	}

	return nil
}

func (r *Repo) Finish(id string, endedAt time.Time, peakClients int, eventsForwarded uint64) error {
	ended, err := attributevalue.Marshal(endedAt)
	if err != nil {
		return errors.Wrap(err, "marshal failed")
	}

	_, err = r.client.UpdateItem(r.ctx, &dynamodb.UpdateItemInput{
		TableName: r.tableName,
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET EndedAt = :ended, PeakClients = :peak, EventsForwarded = :events"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ended":  ended,
			":peak":   &types.AttributeValueMemberN{Value: strconv.Itoa(peakClients)},
			":events": &types.AttributeValueMemberN{Value: strconv.FormatUint(eventsForwarded, 10)},
		},
	})
	if err != nil {
		return errors.Wrap(err, "update failed")
	}

	return nil
}

func (r *Repo) Get(id string) (*Session, error) {
	out, err := r.client.GetItem(r.ctx, &dynamodb.GetItemInput{
		TableName: r.tableName,
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get failed")
	}

	session := new(Session)
	err = attributevalue.UnmarshalMap(out.Item, session)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal failed")
	}

	if session.ID == "" {
		return nil, ErrNotFound
	}

	return session, nil
}
