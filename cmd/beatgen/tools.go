package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/spf13/cobra"

	"go-beatgen/config"
	"go-beatgen/midi"
	"go-beatgen/sequencer"
)

var euclidFlags struct {
	rotation int
	width    int
}

var exportFlags struct {
	out       string
	tempo     float64
	channel   int
	seed      int64
	euclid    string
	note      int
	scale     string
	root      string
	direction string
	load      int
}

var configFlags struct {
	write bool
}

func runPorts(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== MIDI Output Ports ===\n(waiting up to %s...)\n", midi.ScanTimeout)

	names, err := midi.ListOutPorts(midi.ScanTimeout)
	if err != nil {
		if ftag.Get(err) == midi.KindTimeout {
			return fault.Wrap(err, fmsg.WithDesc("list ports", "MIDI driver is hung; on macOS try: sudo killall coreaudiod midiserver"))
		}
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for i, name := range names {
		fmt.Fprintf(out, "  %d: %s\n", i, name)
	}
	return nil
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument), fmsg.WithDesc("parse "+a, fmt.Sprintf("%q is not a number", a)))
		}
		out[i] = v
	}
	return out, nil
}

func runEuclid(cmd *cobra.Command, args []string) error {
	v, err := parseInts(args)
	if err != nil {
		return err
	}
	steps, hits := v[0], v[1]
	if steps < 1 || steps > sequencer.MaxSteps {
		return fault.New("steps out of range", ftag.With(ftag.InvalidArgument),
			fmsg.WithDesc("steps out of range", fmt.Sprintf("STEPS must be 1-%d", sequencer.MaxSteps)))
	}

	d := sequencer.NewSequenceData()
	g := &sequencer.EuclideanGenerator{Steps: steps, Hits: hits, Rotation: euclidFlags.rotation, Width: euclidFlags.width}
	next, err := sequencer.Apply(d, g)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "E(%d,%d) %s\n", steps, hits, sequencer.Pattern(&next))
	return nil
}

// exportData builds the pattern the export command writes
func exportData(cfg *config.Config) (sequencer.SequenceData, error) {
	if exportFlags.load >= 0 {
		store, err := openStore(cfg)
		if err != nil {
			return sequencer.SequenceData{}, err
		}
		return store.Load(0, exportFlags.load)
	}

	d := sequencer.NewSequenceData()
	dir, err := sequencer.ParseDirection(exportFlags.direction)
	if err != nil {
		return d, fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}
	d.Direction = dir

	if exportFlags.scale != "" {
		scale, err := sequencer.ParseScale(exportFlags.scale)
		if err != nil {
			return d, fault.Wrap(err, ftag.With(ftag.InvalidArgument),
				fmsg.WithDesc("bad scale", "Known scales: "+strings.Join(sequencer.ScaleNames(), ", ")))
		}
		root, err := sequencer.ParseRoot(exportFlags.root)
		if err != nil {
			return d, fault.Wrap(err, ftag.With(ftag.InvalidArgument))
		}
		d.Scale = scale
		d.RootNote = root
		d.QuantizeEnabled = true
	}

	var g sequencer.Generator
	if exportFlags.euclid != "" {
		v, err := parseInts(strings.Split(exportFlags.euclid, ","))
		if err != nil {
			return d, err
		}
		if len(v) < 2 {
			return d, fault.New("euclid needs STEPS,HITS", ftag.With(ftag.InvalidArgument))
		}
		e := &sequencer.EuclideanGenerator{Steps: v[0], Hits: v[1]}
		if len(v) > 2 {
			e.Rotation = v[2]
		}
		for i := range d.Steps {
			d.Steps[i].SetNote(exportFlags.note)
		}
		g = e
	} else {
		g = sequencer.NewRandomGenerator(sequencer.NewRand(exportFlags.seed), cfg.Sequencers.OctaveRange, cfg.Sequencers.Density)
	}
	return sequencer.Apply(d, g)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := exportData(cfg)
	if err != nil {
		return err
	}

	tempo := float64(cfg.Transport.Tempo)
	if cmd.Flags().Changed("tempo") {
		tempo = exportFlags.tempo
	}

	f, err := os.Create(exportFlags.out)
	if err != nil {
		return fault.Wrap(err, fmsg.WithDesc("create "+exportFlags.out, "Could not create "+exportFlags.out))
	}
	defer f.Close()

	if err := sequencer.ExportSMF(f, d, tempo, exportFlags.channel-1, sequencer.NewRand(exportFlags.seed)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d steps at %.0f bpm\n", exportFlags.out, sequencer.Pattern(&d), d.Length(), tempo)
	return f.Close()
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fault.Wrap(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))

	if !configFlags.write {
		return nil
	}
	if configPath != "" {
		err = cfg.SaveFile(configPath)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		return fault.Wrap(err, fmsg.WithDesc("save config", "Could not write the configuration file"))
	}
	return nil
}
