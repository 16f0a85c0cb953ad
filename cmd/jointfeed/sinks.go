package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jointfeed/openvr-adapter/internal/adapter"
	"github.com/jointfeed/openvr-adapter/internal/config"
	"github.com/jointfeed/openvr-adapter/internal/database"
	"github.com/jointfeed/openvr-adapter/internal/enumerator"
	"github.com/jointfeed/openvr-adapter/internal/influx"
	"github.com/jointfeed/openvr-adapter/internal/journal"
	"github.com/jointfeed/openvr-adapter/internal/mqttfeed"
	"github.com/jointfeed/openvr-adapter/internal/status"
)

// sinks fans adapter output out to the optional journal, InfluxDB and MQTT.
type sinks struct {
	log     zerolog.Logger
	db      *database.Manager
	journal *journal.Journal
	influx  *influx.Manager
	feed    *mqttfeed.Feed

	// dumpPath receives an in-memory journal on Close.
	dumpPath string
}

func openSinks(ctx context.Context, log zerolog.Logger, dumpPath string) *sinks {
	s := &sinks{log: log, dumpPath: dumpPath}

	jcfg := config.GetJournalConfig()
	if jcfg.Type != "none" && jcfg.Type != "" {
		s.db = database.NewManager(log)
		s.db.SqliteFilePath = jcfg.SQLitePath
		if err := s.db.Connect(jcfg.Type); err != nil {
			log.Error().Err(err).Msg("Journal disabled")
			s.db = nil
		} else if j, err := journal.New(s.db.DB, log, Version, journal.DefaultBufferSize); err != nil {
			log.Error().Err(err).Msg("Journal disabled")
		} else {
			s.journal = j
		}
	}

	icfg := config.GetInfluxConfig()
	if icfg.Enabled {
		m := influx.NewManager(log, icfg)
		if err := m.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("Influx telemetry disabled")
		} else {
			s.influx = m
		}
	}

	mcfg := config.GetMQTTConfig()
	if mcfg.Enabled {
		feed, err := mqttfeed.Dial(mcfg, log)
		if err != nil {
			log.Error().Err(err).Msg("MQTT feed disabled")
		} else {
			s.feed = feed
		}
	}

	return s
}

// StatusChanged and DevicesEnumerated make sinks an adapter.Observer.
func (s *sinks) StatusChanged(st status.Status) {
	if s.journal != nil {
		s.journal.StatusChanged(st)
	}
	if s.influx != nil {
		if err := s.influx.WriteStatus(st, time.Now()); err != nil {
			s.log.Debug().Err(err).Msg("Failed to write status point")
		}
	}
}

func (s *sinks) DevicesEnumerated(entries []enumerator.Entry) {
	if s.journal != nil {
		s.journal.DevicesEnumerated(entries)
	}
}

var _ adapter.Observer = (*sinks)(nil)

// publishFrame sends the current joints to the streaming sinks.
func (s *sinks) publishFrame(a *adapter.Adapter, at time.Time) {
	if s.influx == nil && s.feed == nil {
		return
	}
	joints := a.Joints().Snapshot()
	if s.influx != nil {
		if err := s.influx.WriteJoints(joints, at); err != nil {
			s.log.Debug().Err(err).Msg("Failed to write joint points")
		}
	}
	if s.feed != nil {
		if err := s.feed.PublishJoints(joints, at); err != nil {
			s.log.Debug().Err(err).Msg("Failed to publish joints")
		}
	}
}

func (s *sinks) publishStatus(a *adapter.Adapter) {
	if s.feed == nil {
		return
	}
	if err := s.feed.PublishStatus(a.Report()); err != nil {
		s.log.Debug().Err(err).Msg("Failed to publish status")
	}
}

func (s *sinks) Close() error {
	var errs []error
	if s.feed != nil {
		s.feed.Close()
	}
	if s.influx != nil {
		errs = append(errs, s.influx.Close())
	}
	if s.journal != nil {
		s.journal.Close()
	}
	if s.db != nil {
		if s.db.InMemory && s.dumpPath != "" {
			errs = append(errs, s.db.DumpMemoryToDisk(s.dumpPath))
		}
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
