// Command sdc drives the SafeDispatch return-protection pipeline end to
// end: Class Hierarchy Analysis fixture -> Function-ID Assigner -> Call-Site
// Analyzer -> Return-Check Injector -> Landing-Pad Materializer -> stats
// report.
//
// Grounded on the archInits dispatch / flag-parsing shape of
// teacher_src/cmd_local/compile/main.go and teacher_src/cmd_local/link/main.go.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/TeamVault/rhoFEM/internal/sd/callsite"
	"github.com/TeamVault/rhoFEM/internal/sd/cha"
	"github.com/TeamVault/rhoFEM/internal/sd/encode"
	"github.com/TeamVault/rhoFEM/internal/sd/funcid"
	"github.com/TeamVault/rhoFEM/internal/sd/ir"
	"github.com/TeamVault/rhoFEM/internal/sd/landingpad"
	"github.com/TeamVault/rhoFEM/internal/sd/mach"
	_ "github.com/TeamVault/rhoFEM/internal/sd/mach/amd64"
	_ "github.com/TeamVault/rhoFEM/internal/sd/mach/arm64"
	"github.com/TeamVault/rhoFEM/internal/sd/report"
	"github.com/TeamVault/rhoFEM/internal/sd/retcheck"
	"github.com/TeamVault/rhoFEM/internal/sd/sdlog"
)

// chaFixtureFile is the JSON shape a CHA fixture is read from: CHA's own
// algorithm is out of scope (spec.md's Non-goals), so sdc consumes its
// result as data rather than computing it.
type chaFixtureFile struct {
	IDs   map[string][]uint64 `json:"ids"`
	MaxID uint64              `json:"max_id"`
}

func main() {
	log := sdlog.New("sdc: ")

	archFlag := flag.String("arch", runtime.GOARCH, "target architecture (amd64, arm64)")
	chaPath := flag.String("cha", "", "path to a CHA fixture (JSON: {\"ids\":{...},\"max_id\":N})")
	outBase := flag.String("o", "sdc-out", "output base path for the stats report and pprof profile")
	toolchainVersion := flag.String("toolchain-version", "v0.0.0", "toolchain version, checked as semver before any report is written")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sdc -cha=cha.json [-arch=amd64] [-o=out] <module.txtar>")
		os.Exit(2)
	}

	if _, err := report.StampedVersion(*toolchainVersion); err != nil {
		log.Fatalf("%v", err)
	}

	chaInfo, err := loadCHA(*chaPath)
	if err != nil {
		log.Fatalf("loading CHA fixture: %v", err)
	}
	chaInfo.BuildFunctionInfo()

	modBytes, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("reading module fixture: %v", err)
	}
	mod, err := ir.LoadTxtar(modBytes)
	if err != nil {
		log.Fatalf("parsing module fixture: %v", err)
	}

	log.Stream("P7a. running Function-ID Assigner and Call-Site Analyzer ...")
	enc := encode.NewEncoder(encode.DefaultCeiling)

	funcidRes := funcid.Assign(mod, chaInfo, enc)
	analyzer := callsite.NewAnalyzer(enc, funcidRes.FunctionIDMap)
	callsiteRes := analyzer.Analyze(mod)

	log.Stream("P7b. running Return-Check Injector ...")
	infos := retcheck.LoadFunctionInfo(funcidRes.Metadata)
	for _, info := range infos {
		check := retcheck.Build(info)
		retcheck.CheckExplained(info, check)
	}

	arch, ok := mach.Lookup(*archFlag)
	if !ok {
		log.Fatalf("unknown architecture %q", *archFlag)
	}

	log.Stream("P7c. running Landing-Pad Materializer (%s) ...", arch.Name)
	sites := landingpad.LoadCallSites(callsiteRes.Metadata)
	materializer := landingpad.New(arch)
	_, lpStats := materializer.Materialize(sites)

	log.Stream("landing pads: %d virtual, %d static, %d indirect, %d tail-suppressed, %d unresolved",
		lpStats.VirtualSites, lpStats.StaticSites, lpStats.IndirectSites, lpStats.TailSuppressed, lpStats.UnresolvedSites)

	stats := report.CollectStats(infos, report.LoadExtraIDs(funcidRes.Metadata))

	if err := writeReports(stats, *outBase); err != nil {
		log.Fatalf("writing reports: %v", err)
	}

	fingerprint, err := report.BuildFingerprint(stats)
	if err != nil {
		log.Fatalf("fingerprinting report: %v", err)
	}
	log.Stream("build fingerprint: %s", fingerprint)
	log.Stream("total checks: %d", stats.TotalChecks)
}

func loadCHA(path string) (*cha.Fixture, error) {
	if path == "" {
		return cha.NewFixture(nil, 0), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f chaFixtureFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing CHA fixture: %w", err)
	}
	return cha.NewFixture(f.IDs, f.MaxID), nil
}

func writeReports(stats *report.Stats, outBase string) error {
	csvFile, err := os.Create(outBase + ".stats.csv")
	if err != nil {
		return err
	}
	defer csvFile.Close()
	if err := report.WriteCSV(csvFile, stats); err != nil {
		return err
	}

	profFile, err := os.Create(outBase + "-Backend.pb.gz")
	if err != nil {
		return err
	}
	defer profFile.Close()
	return report.ToProfile(stats).Write(profFile)
}
