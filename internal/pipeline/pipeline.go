// Package pipeline runs one incremental pass over a playlist.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/aggregator"
	"playlist-cards-go/internal/ledger"
	"playlist-cards-go/internal/processor"
	"playlist-cards-go/internal/types"
)

// ErrNoWork means the playlist could not be listed (or is empty) and no
// previous run left any state behind.
var ErrNoWork = errors.New("no playlist videos and no prior state")

type Lister interface {
	List(ctx context.Context, playlistID string) (map[string]types.WorkItem, error)
}

type ItemProcessor interface {
	Process(ctx context.Context, item types.WorkItem) processor.Outcome
}

type Pipeline struct {
	ledger     *ledger.Ledger
	lister     Lister
	proc       ItemProcessor
	playlistID string
	log        *logrus.Entry
}

func New(log *logrus.Entry, l *ledger.Ledger, lister Lister, proc ItemProcessor, playlistID string) *Pipeline {
	return &Pipeline{
		ledger:     l,
		lister:     lister,
		proc:       proc,
		playlistID: playlistID,
		log:        log.WithField("component", "pipeline"),
	}
}

// Run processes every listed video not yet in the ledger, one at a time, and
// saves the ledger once at the end if anything was committed. Cancellation
// stops before the next video; work already committed is still saved.
func (p *Pipeline) Run(ctx context.Context) (aggregator.Summary, error) {
	start := time.Now()

	seen := p.ledger.Load()
	listed, err := p.lister.List(ctx, p.playlistID)
	if err != nil {
		p.log.WithError(err).WithField("playlist", p.playlistID).Error("could not list playlist")
		listed = map[string]types.WorkItem{}
	}
	if len(listed) == 0 && len(seen) == 0 {
		return aggregator.Summary{}, ErrNoWork
	}

	pending := make([]string, 0, len(listed))
	for id := range listed {
		if _, ok := seen[id]; !ok {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	p.log.WithFields(logrus.Fields{
		"listed":  len(listed),
		"seen":    len(seen),
		"pending": len(pending),
	}).Info("starting run")

	outcomes := make([]processor.Outcome, 0, len(pending))
	interrupted := false
	for i, id := range pending {
		if ctx.Err() != nil {
			p.log.WithField("remaining", len(pending)-i).Warn("run cancelled, stopping before next video")
			interrupted = true
			break
		}
		out := p.proc.Process(ctx, listed[id])
		if out.Committed() {
			seen[id] = struct{}{}
		}
		outcomes = append(outcomes, out)
	}

	summary := aggregator.Aggregate(outcomes)
	summary.Listed = len(listed)
	summary.AlreadySeen = len(listed) - len(pending)
	summary.Interrupted = interrupted

	if summary.Committed > 0 {
		if !p.ledger.Save(seen) {
			p.log.WithField("path", p.ledger.Path()).Error("processed videos were not recorded and will be retried next run")
		}
	} else {
		p.log.Info("no new videos committed, ledger unchanged")
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	p.log.WithFields(summary.Fields()).Info("run complete")
	return summary, nil
}
