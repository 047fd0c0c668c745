//go:build integration

package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"governa/internal/audit"
	"governa/internal/audit/relay"
	"governa/internal/platform/kafka/producer"
	id "governa/pkg/domain"
	"governa/pkg/testutil/containers"
)

const relayTestTopic = "governa.audit.events.test"

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	store    *audit.PostgresStore
	producer *producer.Producer
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	ctx := context.Background()
	manager := containers.GetManager()
	s.postgres = manager.GetPostgres(s.T())
	s.kafka = manager.GetKafka(s.T())
	s.store = audit.NewPostgres(s.postgres.DB)

	s.Require().NoError(s.kafka.CreateTopic(ctx, relayTestTopic, 1, 1))

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.producer = prod
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *RelaySuite) newRelay() *relay.Relay {
	return relay.New(s.store, s.producer,
		relay.WithTopic(relayTestTopic),
		relay.WithPollInterval(50*time.Millisecond),
		relay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *RelaySuite) TestPublishesCommittedRecords() {
	ctx := context.Background()
	identityID := id.NewIdentityID()
	record := audit.NewRecord(audit.ActorHRFeed, audit.ActionEmployeeCreated, audit.IdentityTarget(identityID), map[string]any{
		"employee_id": "EMP-7001",
		"department":  "Engineering",
	})
	s.Require().NoError(s.store.Append(ctx, record))

	consumer, err := s.kafka.NewConsumer(ctx, "relay-test-"+record.ID.String(), relayTestTopic)
	s.Require().NoError(err)
	defer consumer.Close()

	r := s.newRelay()
	r.Start()
	defer r.Stop()

	msg := s.kafka.WaitForMessage(ctx, consumer, 30*time.Second, func(rec *kgo.Record) bool {
		return string(rec.Key) == audit.IdentityTarget(identityID)
	})
	s.Require().NotNil(msg, "expected the audit record on the topic")

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(msg.Value, &payload))
	s.Equal(record.ID.String(), payload["id"])
	s.Equal(string(audit.ActionEmployeeCreated), payload["action"])
	s.Equal(audit.ActorHRFeed, payload["actor"])
	s.Equal("EMP-7001", payload["details"].(map[string]any)["employee_id"])

	// Bookkeeping: the record drops out of the unpublished set.
	s.Eventually(func() bool {
		unpublished, err := s.store.NextUnpublished(ctx, 10)
		return err == nil && len(unpublished) == 0
	}, 10*time.Second, 100*time.Millisecond)
}

func (s *RelaySuite) TestPreservesCreationOrderPerTarget() {
	ctx := context.Background()
	identityID := id.NewIdentityID()
	target := audit.IdentityTarget(identityID)

	actions := []audit.Action{
		audit.ActionEmployeeCreated,
		audit.ActionEntitlementGranted,
		audit.ActionEmployeeTerminated,
	}
	for _, action := range actions {
		record := audit.NewRecord(audit.ActorHRFeed, action, target, nil)
		s.Require().NoError(s.store.Append(ctx, record))
	}

	consumer, err := s.kafka.NewConsumer(ctx, "relay-order-"+identityID.String(), relayTestTopic)
	s.Require().NoError(err)
	defer consumer.Close()

	r := s.newRelay()
	r.Start()
	defer r.Stop()

	// Records keyed by target land on one partition in append order.
	var seen []string
	for range actions {
		msg := s.kafka.WaitForMessage(ctx, consumer, 30*time.Second, func(rec *kgo.Record) bool {
			return string(rec.Key) == target
		})
		s.Require().NotNil(msg)
		var payload map[string]any
		s.Require().NoError(json.Unmarshal(msg.Value, &payload))
		seen = append(seen, payload["action"].(string))
	}
	s.Equal([]string{
		string(audit.ActionEmployeeCreated),
		string(audit.ActionEntitlementGranted),
		string(audit.ActionEmployeeTerminated),
	}, seen)
}
