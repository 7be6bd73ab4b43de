package prof

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwbudde/clprof/internal/cl"
)

func (s *Session) ingest() error {
	for _, nq := range s.queues {
		props, err := nq.queue.Properties()
		if err != nil {
			return fmt.Errorf("failed to get properties of queue %q: %w", nq.name, err)
		}
		if !props.Has(cl.QueueProfilingEnable) {
			return newError(CodeProfilingDisabled, nil,
				"queue %q does not have profiling enabled", nq.name)
		}

		for _, ev := range nq.queue.Events() {
			if err := s.ingestEvent(nq.name, ev); err != nil {
				if isUnavailable(err) {
					slog.Info("Skipping event without profiling info",
						"queue", nq.name, "event", ev.Name(), "error", err)
					s.skipped++
					continue
				}
				return err
			}
		}
		nq.queue.GC()
	}
	return nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, cl.ErrProfilingInfoNotAvailable) || errors.Is(err, ErrInfoUnavailable)
}

func (s *Session) ingestEvent(queue string, ev Event) error {
	name := ev.Name()
	ct, err := ev.CommandType()
	if err != nil {
		return fmt.Errorf("failed to get command type of event %q: %w", name, err)
	}
	ts, err := ev.Timestamps()
	if err != nil {
		return fmt.Errorf("failed to get profiling info of event %q: %w", name, err)
	}

	s.numEvents++
	id := s.numEvents
	if _, ok := s.names[name]; !ok {
		s.names[name] = uint32(len(s.nameList))
		s.nameList = append(s.nameList, name)
	}

	s.infos = append(s.infos, Info{
		EventName:   name,
		CommandType: ct,
		QueueName:   queue,
		TQueued:     ts.Queued,
		TSubmit:     ts.Submit,
		TStart:      ts.Start,
		TEnd:        ts.End,
	})

	if ts.End <= ts.Start {
		slog.Info("Event consumed no device time", "queue", queue, "event", name, "id", id)
		return nil
	}
	s.instants = append(s.instants,
		Instant{EventName: name, QueueName: queue, ID: id, Instant: ts.Start, Type: InstantStart},
		Instant{EventName: name, QueueName: queue, ID: id, Instant: ts.End, Type: InstantEnd},
	)
	if ts.Start < s.tStart {
		s.tStart = ts.Start
	}
	return nil
}
