package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	convPKPrefix = "CONV#"
	convSK       = "STATE"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps conversations in a DynamoDB table, one item per customer,
// so state survives restarts and is shared between replicas. Expiry relies on
// the table's TTL attribute plus a read-side check.
//
// Errors are logged and degrade to a fresh conversation.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewDynamoStore creates a DynamoDB-backed conversation store.
func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration, logger *slog.Logger) (*DynamoStore, error) {
	if api == nil {
		return nil, fmt.Errorf("storage: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, fmt.Errorf("storage: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{
		api:       api,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
	}, nil
}

func convKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: convPKPrefix + key},
		"SK": &types.AttributeValueMemberS{Value: convSK},
	}
}

// Get retrieves a conversation by customer key.
func (s *DynamoStore) Get(ctx context.Context, key string) *Conversation {
	conv, ok, _ := s.load(ctx, key)
	if !ok {
		return newConversation(key, s.now())
	}
	return conv
}

// AppendMessage appends a message to a conversation.
func (s *DynamoStore) AppendMessage(ctx context.Context, key string, role Role, text string) {
	s.update(ctx, key, func(conv *Conversation, now time.Time) {
		conv.Messages = appendTrimmed(conv.Messages, Message{
			Role:      role,
			Content:   text,
			Timestamp: now,
		})
	})
}

// MergeContext shallow-merges patch into the conversation context.
func (s *DynamoStore) MergeContext(ctx context.Context, key string, patch Context) {
	s.update(ctx, key, func(conv *Conversation, _ time.Time) {
		conv.Context.merge(patch)
	})
}

// SetState changes the dialogue state.
func (s *DynamoStore) SetState(ctx context.Context, key string, state DialogueState) {
	s.update(ctx, key, func(conv *Conversation, _ time.Time) {
		conv.State = state
	})
}

// GetState returns the current dialogue state.
func (s *DynamoStore) GetState(ctx context.Context, key string) DialogueState {
	if conv, ok, _ := s.load(ctx, key); ok {
		return conv.State
	}
	return StateInitial
}

// Clear removes a conversation.
func (s *DynamoStore) Clear(ctx context.Context, key string) {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       convKey(key),
	})
	if err != nil {
		s.logger.Warn("failed to clear conversation", "customer", key, "error", err)
	}
}

// ListActive scans for unexpired conversations, most recent first.
func (s *DynamoStore) ListActive(ctx context.Context) []*Conversation {
	var (
		out   []*Conversation
		start map[string]types.AttributeValue
	)
	for {
		resp, err := s.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("begins_with(PK, :prefix) AND SK = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: convPKPrefix},
				":sk":     &types.AttributeValueMemberS{Value: convSK},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			s.logger.Warn("failed to list conversations", "error", err)
			break
		}
		for _, item := range resp.Items {
			conv, err := decodeConversation(item)
			if err != nil {
				s.logger.Warn("skipping malformed conversation", "error", err)
				continue
			}
			if s.expired(conv) {
				continue
			}
			out = append(out, conv)
		}
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		start = resp.LastEvaluatedKey
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastInteraction.After(out[j].LastInteraction)
	})
	return out
}

func (s *DynamoStore) expired(conv *Conversation) bool {
	return s.now().Sub(conv.LastInteraction) > s.ttl
}

// load reads a live conversation. A missing, expired or malformed item is
// reported as not found; err is only set when the read itself failed.
func (s *DynamoStore) load(ctx context.Context, key string) (*Conversation, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            convKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		s.logger.Warn("failed to load conversation", "customer", key, "error", err)
		return nil, false, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, false, nil
	}
	conv, err := decodeConversation(out.Item)
	if err != nil {
		s.logger.Warn("malformed conversation item", "customer", key, "error", err)
		return nil, false, nil
	}
	if s.expired(conv) {
		return nil, false, nil
	}
	return conv, true, nil
}

// update applies fn to the stored conversation and writes it back. When the
// read fails the write is skipped so the stored state is left intact.
func (s *DynamoStore) update(ctx context.Context, key string, fn func(conv *Conversation, now time.Time)) {
	now := s.now()
	conv, ok, err := s.load(ctx, key)
	if err != nil {
		s.logger.Error("conversation update dropped", "customer", key, "error", err)
		return
	}
	if !ok {
		conv = newConversation(key, now)
	}
	fn(conv, now)
	conv.LastInteraction = now

	item, err := encodeConversation(conv, now.Add(s.ttl))
	if err != nil {
		s.logger.Warn("failed to encode conversation", "customer", key, "error", err)
		return
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		s.logger.Warn("failed to save conversation", "customer", key, "error", err)
	}
}

func encodeConversation(conv *Conversation, expiresAt time.Time) (map[string]types.AttributeValue, error) {
	payload, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("storage: encode conversation: %w", err)
	}
	item := convKey(conv.ID)
	item["payload"] = &types.AttributeValueMemberS{Value: string(payload)}
	item["state"] = &types.AttributeValueMemberS{Value: string(conv.State)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Unix(), 10)}
	return item, nil
}

func decodeConversation(item map[string]types.AttributeValue) (*Conversation, error) {
	v, ok := item["payload"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("storage: missing payload attribute")
	}
	var conv Conversation
	if err := json.Unmarshal([]byte(v.Value), &conv); err != nil {
		return nil, fmt.Errorf("storage: decode conversation: %w", err)
	}
	if conv.Context == nil {
		conv.Context = Context{}
	}
	if conv.Messages == nil {
		conv.Messages = make([]Message, 0)
	}
	return &conv, nil
}
