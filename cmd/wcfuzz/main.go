// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"time"

	"github.com/fatih/color"

	"wellconstrained/internal/artifact"
	"wellconstrained/internal/config"
	"wellconstrained/internal/errors"
	"wellconstrained/internal/exec"
	"wellconstrained/internal/field"
	"wellconstrained/internal/fixture"
	"wellconstrained/internal/logging"
	"wellconstrained/internal/search"
)

// namedPrimes resolves §6's `--prime=<name>` to a literal modulus for the
// curves the Circom ecosystem actually targets; an unrecognised name falls
// back to parsing the flag's own text as a decimal literal.
var namedPrimes = map[string]*big.Int{
	"bn254":      field.DefaultPrime,
	"babyjubjub": field.DefaultPrime,
	"bls12-381":  mustPrime("52435875175126190479447740508185965837690552500527637822603658699938581184513"),
}

func mustPrime(s string) *big.Int {
	p, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("wcfuzz: invalid built-in prime literal")
	}
	return p
}

func resolvePrime(name string, debugOverride int64) *big.Int {
	if debugOverride != 0 {
		return big.NewInt(debugOverride)
	}
	if name == "" {
		return field.DefaultPrime
	}
	if p, ok := namedPrimes[name]; ok {
		return p
	}
	if p, ok := new(big.Int).SetString(name, 10); ok {
		return p
	}
	color.Yellow("wcfuzz: unrecognised --prime %q, falling back to the default field", name)
	return field.DefaultPrime
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		prime          = flag.String("prime", "", "named curve (bn254, bls12-381) or literal decimal prime")
		debugPrime     = flag.Int64("debug_prime", 0, "override the prime with a small debug value")
		searchMode     = flag.String("search_mode", "ga", "ga or none: enable search, or parse/execute only")
		mutationPath   = flag.String("path_to_mutation_setting", "", "path to a mutation-configuration JSON/YAML file")
		whitelistPath  = flag.String("path_to_whitelist", "", "path to a template-name whitelist file")
		symbolicParams = flag.Bool("symbolic_template_params", false, "leave main's template parameters symbolic")
		saveOutput     = flag.Bool("save_output", false, "write a counterexample artefact when a violation is found")
		heuristicRange = flag.Int("heuristics_range", 0, "override the configured binary-pattern warm-up depth")
		outputPath     = flag.String("output", "counterexample.json", "artefact path used with --save_output")
		timeout        = flag.Duration("timeout", 0, "wall-clock search timeout (0 = no deadline)")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wcfuzz [flags] <input.circom>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return 1
	}
	targetPath := flag.Arg(0)
	log := logging.NewDefault()

	source, err := os.ReadFile(targetPath)
	if err != nil {
		color.Red("wcfuzz: reading %s: %s", targetPath, err)
		return 1
	}

	prog, err := fixture.Parse(targetPath, string(source))
	if err != nil {
		color.Red("wcfuzz: parsing %s: %s", targetPath, err)
		return 1
	}
	if *symbolicParams {
		prog.Main.Args = nil
	}

	fc := field.NewContext(resolvePrime(*prime, *debugPrime))

	cfg := config.Defaults()
	if *mutationPath != "" {
		cfg, err = config.Load(*mutationPath)
		if err != nil {
			reportEngineError(err)
			return 1
		}
	}
	if *heuristicRange > 0 {
		cfg.HeuristicsRange = *heuristicRange
	}

	skipTemplates, err := config.LoadWhitelist(*whitelistPath)
	if err != nil {
		reportEngineError(err)
		return 1
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rnd := rand.New(rand.NewSource(int64(seed)))

	if *searchMode == "none" {
		eng := exec.NewEngine(prog, fc)
		eng.SkipTemplates = skipTemplates
		if _, err := eng.Run(); err != nil {
			reportEngineError(err)
			return 1
		}
		color.Green("✅ %s parsed and symbolically executed with no compile-time errors", targetPath)
		return 0
	}

	driver := search.NewDriver(search.Params{
		Baseline:          prog,
		Field:             fc,
		Logger:            log,
		ProgramPopulation: cfg.ProgramPopulation,
		InputPopulation:   cfg.InputPopulation,
		Generations:       cfg.Generations,
		InputUpdateEvery:  cfg.InputUpdateEvery,
		EliteCount:        cfg.EliteCount,
		TopK:              cfg.TopK,
		BottomK:           cfg.BottomK,
		MaxEdits:          cfg.MaxEdits,
		Weights:           cfg.MutateWeights(),
		Ranges:            cfg.MutateRanges(),
		InputRanges:       cfg.InputRanges(),
		BinaryWarmupFrac:  cfg.BinaryWarmupFraction,
		MultiPointRate:    cfg.MultiPointMutationRate,
		ZeroDivision:      cfg.ZeroDivisionHeuristic,
		SkipTemplates:     skipTemplates,
		Rand:              rnd,
		Timeout:           *timeout,
	})

	start := time.Now()
	result := driver.Run(context.Background())
	elapsed := time.Since(start)

	if result.Counterexample == nil {
		color.Green("✅ no well-constrainedness violation found after %d generations (%s)", result.Generations, result.StoppedReason)
		return 0
	}

	cx := result.Counterexample
	color.Red("⚠ counterexample found: %s (generation %d)", cx.Classification, cx.Generation)

	if *saveOutput {
		doc := artifact.Build(cx, artifact.BuildParams{
			TargetPath:        targetPath,
			MainTemplate:      prog.Main.Template,
			SearchMode:        *searchMode,
			ExecutionTime:     elapsed,
			ProgramPopulation: cfg.ProgramPopulation,
			InputPopulation:   cfg.InputPopulation,
			Generations:       cfg.Generations,
			RandomSeed:        seed,
		})
		if err := artifact.WriteFile(*outputPath, doc); err != nil {
			color.Red("wcfuzz: writing artefact %s: %s", *outputPath, err)
			return 1
		}
		color.Cyan("→ counterexample written to %s", *outputPath)
	}
	return 0
}

func reportEngineError(err error) {
	if ee, ok := err.(errors.EngineError); ok {
		color.Red("%s", ee.Error())
		return
	}
	color.Red("wcfuzz: %s", err)
}
