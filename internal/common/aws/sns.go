// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const answerEventType = "finqa.answer.completed"

// SNSAPI is the subset of the SNS client the publisher needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// AnswerPublisher announces completed answers on an SNS topic.
type AnswerPublisher struct {
	client   SNSAPI
	topicARN string
}

func NewAnswerPublisher(ctx context.Context, region, topicARN string) (*AnswerPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAnswerPublisherWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewAnswerPublisherWithClient(client SNSAPI, topicARN string) *AnswerPublisher {
	return &AnswerPublisher{client: client, topicARN: topicARN}
}

// AnswerEvent is the message body; the full answer stays in the audit store.
type AnswerEvent struct {
	Type       string   `json:"type"`
	RequestID  string   `json:"requestId"`
	Question   string   `json:"question"`
	QueryType  string   `json:"queryType"`
	State      string   `json:"state"`
	Confidence float64  `json:"confidence"`
	Degraded   bool     `json:"degraded"`
	Companies  []string `json:"companies,omitempty"`
	Citations  int      `json:"citations"`
}

func (p *AnswerPublisher) PublishAnswer(ctx context.Context, answer *models.SynthesizedAnswer) error {
	event := AnswerEvent{
		Type:       answerEventType,
		RequestID:  answer.RequestID,
		Question:   answer.Question,
		QueryType:  string(answer.QueryType),
		State:      string(answer.State),
		Confidence: answer.Confidence,
		Degraded:   answer.Degraded,
		Companies:  answer.Entities.Companies,
		Citations:  len(answer.Citations),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return errors.NewEventPublishError(err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(p.topicARN),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"queryType": {DataType: awssdk.String("String"), StringValue: awssdk.String(event.QueryType)},
			"degraded":  {DataType: awssdk.String("String"), StringValue: awssdk.String(fmt.Sprintf("%t", event.Degraded))},
		},
	})
	if err != nil {
		return errors.NewEventPublishError(err)
	}
	return nil
}
