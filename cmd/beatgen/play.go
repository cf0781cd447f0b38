package main

import (
	"context"
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-beatgen/bus"
	"go-beatgen/config"
	"go-beatgen/debug"
	"go-beatgen/midi"
	"go-beatgen/sequencer"
	"go-beatgen/theme"
	"go-beatgen/transport"
	"go-beatgen/tui"
)

var playFlags struct {
	port     string
	tempo    float64
	melodic  int
	kit      string
	noDrums  bool
	latch    bool
	seed     int64
	load     int
	headless bool
}

// loadConfig reads --config (or the default path) and starts the debug log
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("load config", "Could not read the configuration file"))
	}
	if debugLog || cfg.UI.Debug {
		if err := debug.Enable(""); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "debug log:", err)
		}
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*sequencer.FileStore, error) {
	dir, err := cfg.StoreDir()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("store dir"))
	}
	return sequencer.NewFileStore(dir, sequencer.Format(cfg.Store.Format)), nil
}

// applyPlayFlags lets command line flags override the config file
func applyPlayFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Output.PortName = playFlags.port
	}
	if f.Changed("tempo") {
		cfg.Transport.Tempo = int(playFlags.tempo)
	}
	if f.Changed("melodic") {
		cfg.Sequencers.Melodic = playFlags.melodic
	}
	if f.Changed("kit") {
		cfg.Sequencers.Kit = playFlags.kit
	}
	if playFlags.noDrums {
		cfg.Sequencers.Drum = false
	}
	if playFlags.latch {
		cfg.Sequencers.Latch = true
	}
	cfg.Normalize()
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer debug.Disable()
	applyPlayFlags(cmd, cfg)

	port := cfg.Output.PortName
	if port != "" {
		// receivers are keyed by the full port name the hot-plug scan reports
		if out, err := midi.FindOutPort(port); err == nil {
			port = out.String()
		}
	} else {
		names, err := midi.ListOutPorts(midi.ScanTimeout)
		if err != nil {
			return fault.Wrap(err, fmsg.WithDesc("list ports", "MIDI driver did not answer; is another program holding it?"))
		}
		if len(names) > 0 {
			port = names[0]
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	timing := bus.NewTimingBus()
	receivers := midi.NewReceiverManager()
	mgr := sequencer.NewManager(sequencer.ManagerOptions{
		Timing:    timing,
		Receivers: receivers,
		Channels:  midi.NewChannelManager(cfg.Output.DrumChannel - 1),
		Clock:     transport.New(timing, float64(cfg.Transport.Tempo), cfg.Transport.BeatsPerBar, cfg.Transport.BarsPerPart),
		Port:      port,
		Seed:      playFlags.seed,
	})
	defer mgr.Close()

	rng := sequencer.NewRand(playFlags.seed)
	for i := 0; i < cfg.Sequencers.Melodic; i++ {
		gen := sequencer.NewRandomGenerator(sequencer.NewRand(rng.Int63()), cfg.Sequencers.OctaveRange, cfg.Sequencers.Density)
		s, err := mgr.AddMelodic(nil, gen)
		if err != nil {
			return fault.Wrap(err, fmsg.With("add melodic sequencer"))
		}
		if err := s.Regenerate(); err != nil {
			return fault.Wrap(err, fmsg.With("generate "+s.Name()))
		}
		s.SetLatch(cfg.Sequencers.Latch)
	}
	if cfg.Sequencers.Drum {
		d := mgr.AddDrum(cfg.Sequencers.Kit)
		if err := d.Regenerate(); err != nil {
			return fault.Wrap(err, fmsg.With("generate drums"))
		}
		d.SetLatch(cfg.Sequencers.Latch)
	}
	if playFlags.load >= 0 {
		if err := mgr.LoadAll(store, playFlags.load); err != nil {
			debug.Log("main", "load %d: %v", playFlags.load, err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	devices := midi.NewDeviceManager(receivers)
	go devices.Run(ctx)

	debug.Log("main", "playing on %q at %d bpm", port, cfg.Transport.Tempo)
	if port == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "output: none yet, the first MIDI output that appears will be used")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "output: %s\n", port)
	}

	if playFlags.headless {
		return playHeadless(ctx, cmd, mgr, devices)
	}

	var th *theme.Theme
	if cfg.UI.Palette != "" {
		palette, err := theme.LoadGPL(cfg.UI.Palette)
		if err != nil {
			debug.Log("main", "palette: %v", err)
		}
		th = theme.New(palette)
	}

	mgr.Start(ctx)
	model := tui.NewModel(ctx, mgr, devices, store, th)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		return fault.Wrap(err, fmsg.With("terminal monitor"))
	}
	return nil
}

// playHeadless plays until ctx is cancelled, then silences every port
func playHeadless(ctx context.Context, cmd *cobra.Command, mgr *sequencer.Manager, devices *midi.DeviceManager) error {
	mgr.Start(ctx)
	events := devices.Events()
	for {
		select {
		case <-ctx.Done():
			mgr.Stop()
			mgr.Panic()
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if mgr.FollowDevice(ev) {
				fmt.Fprintf(cmd.OutOrStdout(), "output: %q\n", mgr.DefaultPort())
			}
		}
	}
}
