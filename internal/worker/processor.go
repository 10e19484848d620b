// Package worker consumes queue jobs and dispatches them: report jobs run
// the pipeline, asset jobs drive derived-asset generation.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/pipeline"
	"github.com/contentpulse/backend/internal/queue"
	"github.com/contentpulse/backend/internal/service"
)

type Processor struct {
	consumer     queue.Consumer
	orchestrator *pipeline.Orchestrator
	assets       *service.AssetsService
	logger       *log.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	orchestrator *pipeline.Orchestrator,
	assets *service.AssetsService,
	logger *log.Logger,
) *Processor {
	return &Processor{
		consumer:     consumer,
		orchestrator: orchestrator,
		assets:       assets,
		logger:       logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) error {
	var err error
	switch message.Kind {
	case domain.JobKindReport:
		err = p.orchestrator.Run(ctx, message.TargetID)
	case domain.JobKindArticle:
		err = p.assets.GenerateArticle(ctx, message.TargetID)
	case domain.JobKindMeme:
		err = p.assets.GenerateMeme(ctx, message.TargetID)
	case domain.JobKindSlop:
		err = p.assets.GenerateSlop(ctx, message.TargetID)
	default:
		return fmt.Errorf("unsupported job kind: %s", message.Kind)
	}
	if err != nil {
		return fmt.Errorf("process %s job %s: %w", message.Kind, message.JobID, err)
	}

	if p.logger != nil {
		p.logger.Printf("job processed kind=%s job_id=%s target_id=%s", message.Kind, message.JobID, message.TargetID)
	}
	return nil
}
