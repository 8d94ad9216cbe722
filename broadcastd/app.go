// Package broadcastd wires together one synchronized audio broadcast
// channel: a playlist read from disk, a set of receivers dialed out to by
// address, the tick controller that paces playback, and a prometheus
// metrics endpoint.
//
// This mirrors how the teacher's demo/colorphase app wires a discovery
// Registry, a per-device sender, and a color generator into one running
// process; broadcastd has no discovery layer of its own, so receivers are
// named explicitly on the command line instead of being discovered.
package broadcastd

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/soundwaveio/syncaudio/broadcaster"
	"github.com/soundwaveio/syncaudio/channel"
	"github.com/soundwaveio/syncaudio/clock"
	"github.com/soundwaveio/syncaudio/controller"
	"github.com/soundwaveio/syncaudio/emitter"
	"github.com/soundwaveio/syncaudio/eventbus"
	"github.com/soundwaveio/syncaudio/receiver"
	"github.com/soundwaveio/syncaudio/sourcestream"
	"github.com/soundwaveio/syncaudio/storage"
	"github.com/soundwaveio/syncaudio/support/transport"
)

var (
	channelID      = pflag.String("channel-id", "default", "Identifier for the channel this daemon runs.")
	metricsAddr    = pflag.String("metrics-addr", ":9100", "Address to serve /metrics on.")
	tickInterval   = pflag.Duration("tick-interval", 20*time.Millisecond, "How often the controller paces the channel's broadcaster.")
	streamInterval = pflag.Duration("stream-interval", 20*time.Millisecond, "Steady-state spacing between a source's frames.")
	bufferSize     = pflag.Int("buffer-size", 10, "Number of frames to fast-fill a receiver's buffer with on play.")
	frameSize      = pflag.Int("frame-size", 3840, "Fixed PCM frame size in bytes (20ms of 48kHz stereo 16-bit by default).")
	playlist       = pflag.StringArray("source", nil, "Path to a raw PCM file to add to the playlist, in play order. Repeatable.")
	receivers      = pflag.StringArray("receiver", nil, "id@audio-host:port@sync-host:port for a receiver to dial on startup. Repeatable.")
	verbose        = pflag.Bool("verbose", false, "Enable debug and info logging.")
)

// Main parses flags, wires the daemon, and blocks until terminated.
func Main() {
	pflag.Parse()

	logger := &stdLogger{Logger: log.New(os.Stderr, "broadcastd: ", log.LstdFlags), verbose: *verbose}

	if len(*playlist) == 0 {
		log.Fatalf("at least one -source is required")
	}

	clk := &clock.Clock{}
	events := &eventbus.Bus{}
	events.AddListener(eventbus.ListenerFunc(func(e interface{}) {
		logger.Infof("event: %#v", e)
	}))

	playlistStore := &storage.MemPlaylistStore{}
	receiverStore := &storage.MemReceiverStore{}

	if err := playlistStore.Save(storage.Playlist{ID: *channelID, ChannelID: *channelID, SourceIDs: *playlist}); err != nil {
		log.Fatalf("saving playlist: %s", err)
	}
	pl, err := playlistStore.Load(*channelID)
	if err != nil {
		log.Fatalf("loading playlist: %s", err)
	}

	stream := &sourcestream.Stream{
		Source:    newFileSource(pl.SourceIDs, *frameSize),
		FrameSize: *frameSize,
		Logger:    logger,
	}
	stream.Init()

	ch := &channel.Channel{
		ID:             *channelID,
		Clock:          clk,
		Events:         events,
		Logger:         logger,
		StreamInterval: *streamInterval,
		BufferSize:     *bufferSize,
		Stream:         stream,
	}

	ctl := &controller.Controller{Clock: clk, Interval: *tickInterval, Logger: logger}
	ctl.Register(*channelID, ch)

	specs, err := parseReceiverSpecs(*receivers)
	if err != nil {
		log.Fatalf("parsing -receiver: %s", err)
	}

	var volumes sync.Map // receiverID -> int
	events.AddListener(eventbus.ListenerFunc(func(e interface{}) {
		if vc, ok := e.(eventbus.VolumeChange); ok {
			volumes.Store(vc.ReceiverID, vc.Volume)
		}
	}))

	for _, spec := range specs {
		if err := attachReceiver(ch, receiverStore, spec); err != nil {
			logger.Errorf("attaching receiver %q: %s", spec.id, err)
		}
	}

	reg := prometheus.NewRegistry()
	broadcaster.RegisterMonitoring(reg)
	channel.RegisterMonitoring(reg)
	controller.RegisterMonitoring(reg)
	emitter.RegisterMonitoring(reg)
	receiver.RegisterMonitoring(reg)
	storage.RegisterMonitoring(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server: %s", err)
		}
	}()

	ctl.Start()
	if err := ch.PlayPause(); err != nil {
		log.Fatalf("starting playback: %s", err)
	}
	logger.Infof("channel %q playing %d source(s)", *channelID, len(pl.SourceIDs))

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	<-sigC

	logger.Infof("shutting down")
	ctl.Stop()

	for _, spec := range specs {
		pct := 100
		if v, ok := volumes.Load(spec.id); ok {
			pct = v.(int)
		}
		if err := receiverStore.Save(storage.ReceiverProfile{ID: spec.id, VolumePct: pct}); err != nil {
			logger.Errorf("saving receiver profile %q: %s", spec.id, err)
		}
		if err := ch.DetachReceiver(spec.id); err != nil {
			logger.Errorf("detaching receiver %q: %s", spec.id, err)
		}
	}
}

type receiverSpec struct {
	id        string
	audioAddr string
	syncAddr  string
}

func parseReceiverSpecs(raw []string) ([]receiverSpec, error) {
	specs := make([]receiverSpec, 0, len(raw))
	for _, r := range raw {
		parts := strings.Split(r, "@")
		if len(parts) != 3 {
			return nil, errors.Errorf("invalid -receiver %q, want id@audio-host:port@sync-host:port", r)
		}
		specs = append(specs, receiverSpec{id: parts[0], audioAddr: parts[1], syncAddr: parts[2]})
	}
	return specs, nil
}

func attachReceiver(ch *channel.Channel, receiverStore storage.ReceiverStore, spec receiverSpec) error {
	audioAddr, err := transport.ResolveTCPAddr(spec.audioAddr)
	if err != nil {
		return err
	}
	syncAddr, err := transport.ResolveTCPAddr(spec.syncAddr)
	if err != nil {
		return err
	}

	sender := &transport.ResilientSender{
		Factory: func() (transport.Sender, error) { return transport.Dial(audioAddr) },
	}

	att := channel.Attachment{
		ID:            spec.id,
		AudioSender:   sender,
		SyncTransport: transport.DialSyncTransport(syncAddr),
	}
	if err := ch.AttachReceiver(att); err != nil {
		return err
	}

	if profile, err := receiverStore.Load(spec.id); err == nil {
		if err := ch.SetVolume(spec.id, profile.VolumePct); err != nil {
			return err
		}
	} else if err != storage.ErrNotFound {
		return err
	}
	return nil
}
