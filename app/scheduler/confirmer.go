package scheduler

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/aisleworks/shelfsync/app/transport"
	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/repository"
	"github.com/aisleworks/shelfsync/utils"
)

// Confirmer consumes inbound transport messages and finalizes the state
// machine: matching-token results close the loop on a dispatch, heartbeats
// drive gateway liveness. It holds no per-tag state of its own.
type Confirmer struct {
	tagRepo     repository.TagRepository
	gatewayRepo repository.GatewayRepository
	logger      *log.Logger
}

func NewConfirmer(tagRepo repository.TagRepository, gatewayRepo repository.GatewayRepository, logWriter io.Writer) *Confirmer {
	if logWriter == nil {
		logWriter = os.Stdout
	}
	return &Confirmer{
		tagRepo:     tagRepo,
		gatewayRepo: gatewayRepo,
		logger:      log.New(logWriter, "confirmer ", log.LstdFlags|log.LUTC),
	}
}

// HandleResult applies one confirmation. Battery and last-seen telemetry are
// written even when the token is stale: a late confirmation still carries
// fresh sensor data. Only a matching token may change sync_state, and a
// duplicate matching result re-applies the status mapping rather than being
// deduplicated.
func (c *Confirmer) HandleResult(ctx context.Context, msg transport.ResultMessage) {
	serial, err := utils.NormalizeTagSerial(msg.TagSerial)
	if err != nil {
		confirmationsTotal.WithLabelValues("unknown_tag").Inc()
		c.logger.Printf("confirmer: result with malformed serial %q: %v", msg.TagSerial, err)
		return
	}

	if err := c.tagRepo.UpdateTelemetry(ctx, serial, clampBattery(msg.Battery), utils.UTCNow()); err != nil {
		c.logger.Printf("confirmer: telemetry update failed for tag %s: %v", serial, err)
	}

	tag, err := c.tagRepo.BySerial(ctx, serial)
	if err != nil {
		c.logger.Printf("confirmer: tag lookup failed for %s: %v", serial, err)
		return
	}
	if tag == nil {
		confirmationsTotal.WithLabelValues("unknown_tag").Inc()
		c.logger.Printf("confirmer: result for unknown tag %s discarded", serial)
		return
	}

	if tag.LastImageToken == nil || *tag.LastImageToken != msg.Token {
		// Stale confirmation from a superseded dispatch: log and discard.
		confirmationsTotal.WithLabelValues("stale").Inc()
		c.logger.Printf("confirmer: stale token %d for tag %s (live token %v), state unchanged", msg.Token, serial, tag.LastImageToken)
		return
	}

	state := models.SyncStateSuccess
	outcome := "accepted"
	if msg.StatusCode != 0 {
		state = models.SyncStateFailed
		outcome = "rejected"
	}
	if err := c.tagRepo.UpdateSyncState(ctx, tag.ID, state); err != nil {
		c.logger.Printf("confirmer: state update failed for tag %s: %v", serial, err)
		return
	}
	confirmationsTotal.WithLabelValues(outcome).Inc()
	c.logger.Printf("confirmer: tag %s token %d status %d -> %s", serial, msg.Token, msg.StatusCode, state)
}

// HandleHeartbeat stamps the gateway online; no relation to any single tag
func (c *Confirmer) HandleHeartbeat(ctx context.Context, msg transport.HeartbeatMessage) {
	heartbeatsTotal.Inc()
	if err := c.gatewayRepo.MarkSeen(ctx, msg.GatewayMAC, utils.UTCNow()); err != nil {
		c.logger.Printf("confirmer: heartbeat update failed for gateway %s: %v", msg.GatewayMAC, err)
	}
}

func clampBattery(raw int) int {
	if raw < 0 {
		return 0
	}
	if raw > 100 {
		return 100
	}
	return raw
}
