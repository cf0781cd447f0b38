package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	configPath string
	debugLog   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

// describe prefers the user-facing message attached with fmsg.WithDesc
func describe(err error) string {
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	if chain := fault.Flatten(err); len(chain) > 0 && chain[0].Message != "" {
		return chain[0].Message
	}
	return err.Error()
}

var rootCmd = &cobra.Command{
	Use:   "beatgen",
	Short: "Generative MIDI step sequencer",
	Long: `beatgen plays melodic and drum step sequencers on a MIDI output port.
Patterns come from random, euclidean and fill generators and can be
regenerated every cycle (latch).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start the sequencers with the terminal monitor",
	Long: `Start the sequencers on the configured output port.

Examples:
  beatgen play
  beatgen play --port "IAC Driver" --tempo 96
  beatgen play --headless --melodic 1 --kit rd8`,
	RunE: runPlay,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output ports",
	RunE:  runPorts,
}

var euclidCmd = &cobra.Command{
	Use:   "euclid STEPS HITS",
	Short: "Print a euclidean rhythm",
	Long: `Print the Bjorklund distribution of HITS over STEPS.

Example:
  beatgen euclid 16 5 --rotation 2`,
	Args: cobra.ExactArgs(2),
	RunE: runEuclid,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one generated pattern cycle as a standard MIDI file",
	Long: `Generate a pattern and write one cycle of it as a standard MIDI file.

Examples:
  beatgen export -o riff.mid --seed 7
  beatgen export -o kick.mid --euclid 16,4 --note 36
  beatgen export -o stored.mid --load 3`,
	RunE: runExport,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialise the configuration file",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/go-beatgen/config.json)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Write a debug log to ~/.config/go-beatgen/debug.log")

	playCmd.Flags().StringVarP(&playFlags.port, "port", "p", "", "MIDI output port (name or part of it)")
	playCmd.Flags().Float64VarP(&playFlags.tempo, "tempo", "t", 0, "Tempo in BPM")
	playCmd.Flags().IntVarP(&playFlags.melodic, "melodic", "m", -1, "Number of melodic sequencers")
	playCmd.Flags().StringVarP(&playFlags.kit, "kit", "k", "", "Drum kit (gm, rd8, tr8s, er1)")
	playCmd.Flags().BoolVar(&playFlags.noDrums, "no-drums", false, "Do not create a drum sequencer")
	playCmd.Flags().BoolVar(&playFlags.latch, "latch", false, "Regenerate every pattern each cycle")
	playCmd.Flags().Int64Var(&playFlags.seed, "seed", 0, "Random seed (0 = time)")
	playCmd.Flags().IntVar(&playFlags.load, "load", -1, "Load a stored sequence number at startup")
	playCmd.Flags().BoolVar(&playFlags.headless, "headless", false, "Play without the terminal monitor until interrupted")

	euclidCmd.Flags().IntVarP(&euclidFlags.rotation, "rotation", "r", 0, "Rotate the pattern right")
	euclidCmd.Flags().IntVarP(&euclidFlags.width, "width", "w", 0, "Extra steps played after each hit")

	exportCmd.Flags().StringVarP(&exportFlags.out, "output", "o", "pattern.mid", "Output .mid file")
	exportCmd.Flags().Float64VarP(&exportFlags.tempo, "tempo", "t", 0, "Tempo in BPM")
	exportCmd.Flags().IntVarP(&exportFlags.channel, "channel", "c", 1, "MIDI channel (1-16)")
	exportCmd.Flags().Int64Var(&exportFlags.seed, "seed", 0, "Random seed (0 = time)")
	exportCmd.Flags().StringVar(&exportFlags.euclid, "euclid", "", "Euclidean STEPS,HITS[,ROTATION] instead of random notes")
	exportCmd.Flags().IntVar(&exportFlags.note, "note", 60, "Note for euclidean hits")
	exportCmd.Flags().StringVar(&exportFlags.scale, "scale", "", "Quantize to scale (e.g. major, dorian)")
	exportCmd.Flags().StringVar(&exportFlags.root, "root", "C", "Scale root")
	exportCmd.Flags().StringVar(&exportFlags.direction, "direction", "forward", "forward, backward, bounce or random")
	exportCmd.Flags().IntVar(&exportFlags.load, "load", -1, "Export a stored sequence of sequencer 0 instead of generating")

	configCmd.Flags().BoolVar(&configFlags.write, "write", false, "Write the effective config to disk")

	rootCmd.AddCommand(playCmd, portsCmd, euclidCmd, exportCmd, configCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
