package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mrinlm/internal/logging"
	"mrinlm/internal/models"
	"mrinlm/internal/sysinfo"
	"mrinlm/pkg/config"
	"mrinlm/pkg/imageio"
	"mrinlm/pkg/noise"
	"mrinlm/pkg/quality"
	"mrinlm/pkg/reconstruction"
	"mrinlm/pkg/server"
	"mrinlm/pkg/similarity"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Slice image or directory of slice images to denoise")
	outputDir := flag.String("output", "denoised", "Directory for the denoised 16-bit TIFF slices")
	configPath := flag.String("config", "mrinlm.yaml", "YAML configuration file")
	workers := flag.Int("workers", 0, "Number of worker goroutines (0: all logical cores)")
	metric := flag.String("metric", "", "Patch similarity metric: meansquares or pearson")
	smoothing := flag.Float64("h", 0, "Smoothing factor h of the weight kernel")
	sigma2 := flag.String("sigma2", "", "Noise variance, or auto to estimate it from the input")
	rician := flag.Bool("rician", false, "Subtract the 2*sigma2 noise bias from patch distances")
	patchRadius := flag.Int("patch", 0, "Patch radius in pixels along every axis")
	searchRadius := flag.Int("search", 0, "Search radius in pixels along every axis")
	sliceGap := flag.Float64("gap", 0, "Inter-slice gap in mm")
	referencePath := flag.String("reference", "", "Noise-free reference to compute quality metrics against")
	phantom := flag.Int("phantom", 0, "Denoise a generated NxNxN phantom with Rician noise instead of -input")
	phantomNoise := flag.Float64("phantom-noise", 8, "Noise level sigma of the generated phantom")
	serveAddr := flag.String("serve", "", "Serve the REST API on this address instead of processing files")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error or off")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to this file and exit")
	initConfig := flag.String("init-config", "", "Write a configuration file with default values and exit")
	flag.Parse()

	if *initConfig != "" {
		console := logging.NewConsole(zerolog.InfoLevel)
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			console.Fatal().Err(err).Msg("failed to write default configuration")
		}
		console.Info().Str("path", *initConfig).Msg("default configuration written")
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		console := logging.NewConsole(zerolog.InfoLevel)
		console.Fatal().Err(err).Str("path", *configPath).Msg("failed to load configuration")
	}

	// Flags given on the command line override the configuration file
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Processing.NumWorkers = *workers
		case "metric":
			m, err := similarity.ParseMetric(*metric)
			if err != nil {
				flagErr = err
			}
			cfg.Denoise.Metric = m
		case "h":
			cfg.Denoise.SmoothingFactor = *smoothing
		case "sigma2":
			cfg.Denoise.SmoothingVariance = *sigma2
		case "rician":
			cfg.Denoise.UseRicianNoiseModel = *rician
		case "patch":
			cfg.Denoise.PatchRadius = []int{*patchRadius}
		case "search":
			cfg.Denoise.SearchRadius = []int{*searchRadius}
		case "gap":
			cfg.Processing.SliceGap = *sliceGap
		case "log-level":
			cfg.Output.LogLevel = *logLevel
		case "serve":
			cfg.Server.Addr = *serveAddr
		}
	})

	level, err := logging.ParseLevel(cfg.Output.LogLevel)
	if err != nil {
		flagErr = err
		level = zerolog.InfoLevel
	}
	logger := logging.NewConsole(level)
	if flagErr != nil {
		logger.Fatal().Err(flagErr).Msg("invalid arguments")
	}

	if *writeConfig != "" {
		if err := config.SaveConfig(cfg, *writeConfig); err != nil {
			logger.Fatal().Err(err).Msg("failed to write configuration")
		}
		logger.Info().Str("path", *writeConfig).Msg("configuration written")
		return
	}

	host := sysinfo.Detect()
	logger.Info().Str("host", host.String()).Msg("mrinlm")

	if *serveAddr != "" {
		if err := server.New(cfg, logger).Run(cfg.Server.Addr); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
		return
	}

	var input, reference *models.Image
	switch {
	case *phantom > 0:
		reference = noise.Phantom(*phantom, *phantom, *phantom)
		input = noise.AddRicianNoise(reference, *phantomNoise, uint32(time.Now().UnixNano()))
		logger.Info().Int("size", *phantom).Float64("sigma", *phantomNoise).Msg("generated phantom")
	case *inputPath != "":
		input, err = imageio.Read(*inputPath, cfg.Processing.SliceGap)
		if err != nil {
			logger.Fatal().Err(err).Str("input", *inputPath).Msg("failed to read input")
		}
		logger.Info().Ints("size", input.Size).Str("input", *inputPath).Msg("loaded input")
	default:
		flag.Usage()
		os.Exit(1)
	}

	if *referencePath != "" {
		reference, err = imageio.Read(*referencePath, cfg.Processing.SliceGap)
		if err != nil {
			logger.Fatal().Err(err).Str("reference", *referencePath).Msg("failed to read reference")
		}
	}

	params, err := cfg.Params()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := reconstruction.NewReconstructor(&params)
	r.SetLogger(logger)
	r.SetProgressCallback(func(completed, total int) {
		logger.Info().Msgf("denoised %d/%d slabs", completed, total)
	})

	startTime := time.Now()
	output, err := r.Run(ctx, input)
	if err != nil {
		if reconstruction.IsConfigError(err) {
			logger.Fatal().Err(err).Msg("invalid denoising parameters")
		}
		logger.Fatal().Err(err).Msg("denoising failed")
	}
	stats := r.GetStats()
	logger.Info().
		Dur("elapsed", time.Since(startTime)).
		Float64("variance", stats.SmoothingVariance).
		Int64("compared", stats.Compared).
		Int64("rejected", stats.Rejected).
		Int64("fallbacks", stats.Fallbacks).
		Float64("meanAbsChange", quality.MeanAbsoluteChange(input.Data, output.Data)).
		Msg("denoising completed")

	if reference != nil {
		report, err := quality.Compare(reference, output)
		if err != nil {
			logger.Error().Err(err).Msg("cannot compare with reference")
		} else {
			before, _ := quality.Compare(reference, input)
			logger.Info().
				Str("rmse", fmt.Sprintf("%.3f -> %.3f", before.RMSE, report.RMSE)).
				Str("psnr", fmt.Sprintf("%.2f -> %.2f dB", before.PSNR, report.PSNR)).
				Str("ssim", fmt.Sprintf("%.4f -> %.4f", before.SSIM, report.SSIM)).
				Float64("entropyDiff", report.EntropyDiff).
				Msg("quality against reference")
		}
	}

	axis := strings.ToLower(cfg.Output.Axis)
	files, err := imageio.WriteSlices(output, filepath.Join(*outputDir, axis), axis, imageio.FullRange(input))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to write output")
	}
	logger.Info().Str("dir", *outputDir).Int("slices", len(files)).Msg("output written")
}
