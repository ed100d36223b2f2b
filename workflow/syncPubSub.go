package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type BackfillMessage struct {
	RunId         uint   `json:"run_id"`
	Kind          string `json:"kind"`
	CorrelationId string `json:"correlation_id,omitempty"`
}

// PublishBackfillRun sends msg to SYNC_BACKFILL_TOPIC.
func PublishBackfillRun(ctx context.Context, msg BackfillMessage) error {
	_, err := config.PublishJSON(ctx, config.SyncBackfillTopic(), msg, config.SyncBackfillCreateTopic())
	return err
}

var errInvalidPush = errors.New("invalid backfill push message")

// HandlePush decodes a Pub/Sub push body and processes the run it names.
// Malformed messages are reported as errors; callers still ack them.
func (o *Orchestrator) HandlePush(ctx context.Context, body []byte) error {
	var envelope PubSubPushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	var msg BackfillMessage
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
		return err
	}
	if msg.RunId == 0 {
		return errInvalidPush
	}

	correlationId := msg.CorrelationId
	if correlationId == "" {
		correlationId = envelope.Message.ID
	}
	ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
	_, _, err := o.ProcessRun(ctx, msg.RunId)
	return err
}
