package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-beatgen/config"
)

func TestDescribePrefersIssue(t *testing.T) {
	err := fault.Wrap(fault.New("raw"), fmsg.WithDesc("ctx", "Friendly message"))
	if got := describe(err); got != "Friendly message" {
		t.Fatalf("describe = %q", got)
	}
	if got := describe(fault.New("plain")); got != "plain" {
		t.Fatalf("describe = %q", got)
	}
}

func TestParseInts(t *testing.T) {
	v, err := parseInts([]string{"16", " 5 ", "2"})
	if err != nil || len(v) != 3 || v[0] != 16 || v[1] != 5 || v[2] != 2 {
		t.Fatalf("parseInts = %v, %v", v, err)
	}
	if _, err := parseInts([]string{"x"}); ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestEuclidCommand(t *testing.T) {
	var out bytes.Buffer
	euclidCmd.SetOut(&out)
	euclidFlags.rotation, euclidFlags.width = 0, 0
	if err := runEuclid(euclidCmd, []string{"8", "3"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "X..X..X.") {
		t.Fatalf("output = %q", out.String())
	}
	if err := runEuclid(euclidCmd, []string{"0", "3"}); err == nil {
		t.Fatal("expected range error")
	}
}

func TestExportDataEuclid(t *testing.T) {
	saved := exportFlags
	defer func() { exportFlags = saved }()
	exportFlags.load = -1
	exportFlags.direction = "forward"
	exportFlags.euclid = "8,2"
	exportFlags.note = 36

	d, err := exportData(config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if d.Length() != 8 || d.ActiveCount() != 2 || d.Steps[0].Note != 36 {
		t.Fatalf("got length %d, %d hits, note %d", d.Length(), d.ActiveCount(), d.Steps[0].Note)
	}

	exportFlags.euclid = "8"
	if _, err := exportData(config.DefaultConfig()); err == nil {
		t.Fatal("expected error for a single euclid value")
	}
	exportFlags.euclid = ""
	exportFlags.scale = "nope"
	if _, err := exportData(config.DefaultConfig()); err == nil {
		t.Fatal("expected error for an unknown scale")
	}
}

func TestExportWritesFile(t *testing.T) {
	saved := exportFlags
	defer func() { exportFlags = saved }()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.json")
	defer func() { configPath = "" }()

	exportFlags.out = filepath.Join(dir, "out.mid")
	exportFlags.load = -1
	exportFlags.direction = "forward"
	exportFlags.channel = 1
	exportFlags.seed = 3
	exportFlags.scale = "major"
	exportFlags.root = "D"

	var out bytes.Buffer
	exportCmd.SetOut(&out)
	if err := runExport(exportCmd, nil); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(exportFlags.out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := smf.ReadFrom(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Tracks) != 2 {
		t.Fatalf("%d tracks", len(s.Tracks))
	}
}
