// Command voice-studio generates, plays and manages synthesized speech from
// the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/config"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/fileutil"
	"github.com/book-expert/voice-studio/internal/history"
	"github.com/book-expert/voice-studio/internal/notify"
	"github.com/book-expert/voice-studio/internal/objectstore"
	"github.com/book-expert/voice-studio/internal/playback"
	"github.com/book-expert/voice-studio/internal/session"
	"github.com/book-expert/voice-studio/internal/voiceapi"
)

const appName = "voice-studio"

// Flag names.
const (
	flagConfig      = "config"
	flagVerbose     = "verbose"
	flagText        = "text"
	flagVoices      = "voices"
	flagType        = "type"
	flagTranslate   = "translate"
	flagLanguage    = "lang"
	flagSource      = "source"
	flagDownload    = "download"
	flagPlay        = "play"
	flagGender      = "gender"
	flagEmotion     = "emotion"
	flagName        = "name"
	flagDescription = "description"
	flagFile        = "file"
)

// Flag descriptions.
const (
	flagConfigDesc      = "Path to a TOML config file (defaults to project.toml discovery)"
	flagVerboseDesc     = "Enable verbose logging"
	flagTextDesc        = "Text to convert to speech"
	flagVoicesDesc      = "Comma separated voice ids"
	flagTypeDesc        = "Voice type: profile or clone"
	flagTranslateDesc   = "Translate the text before generating"
	flagLanguageDesc    = "Translation target language (defaults to the configured one)"
	flagSourceDesc      = "Translation source language (defaults to the configured one)"
	flagDownloadDesc    = "Download every generated clip"
	flagPlayDesc        = "Play the first generated clip"
	flagGenderDesc      = "Filter profiles by gender"
	flagEmotionDesc     = "Filter profiles by emotion"
	flagFilterLangDesc  = "Filter profiles by language"
	flagNameDesc        = "Clone name"
	flagDescriptionDesc = "Clone description"
	flagFileDesc        = "Audio sample to train the clone on"
)

// Error messages.
const (
	errFmtUnknownCommand = "%w: %s"
	errFmtBadID          = "invalid id %q: %w"
	errFmtOpenSample     = "failed to open audio sample %s: %w"
	errFmtLoadConfig     = "failed to load configuration: %w"
	errFmtInitLogger     = "failed to initialize logger: %w"
	errFmtInitDownloads  = "failed to prepare download directory: %w"
)

// Console output.
const (
	outFmtResult     = "%s\t%s\n"
	outFmtSaved      = "Saved %s\n"
	outFmtPlaying    = "Playing %s\n"
	outFmtClone      = "Created clone %s (%s)\n"
	outFmtTranslated = "Translated text: %s\n"
	outFmtNotice     = "%s: %s\n"
	historyTextWidth = 40
	playbackPoll     = 100 * time.Millisecond
)

// File names.
const (
	logFileNameDefault = "voice-studio.log"
	logFileNameVerbose = "voice-studio-verbose.log"
)

// Static errors.
var (
	ErrNoCommand        = errors.New("no command given")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMissingArgument  = errors.New("missing argument")
	ErrUnsupportedAudio = errors.New("unsupported audio sample format")
)

// app holds everything a command needs.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	client    *voiceapi.Client
	studio    *session.Studio
	downloads *objectstore.FileStore
	out       io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

func commands() map[string]command {
	return map[string]command{
		"voices":   {usage: "voices [-type profile|clone] [-gender g] [-emotion e] [-lang l]", run: runVoices},
		"generate": {usage: "generate -text T -voices 1,2 [-type t] [-translate] [-download] [-play]", run: runGenerate},
		"history":  {usage: "history", run: runHistory},
		"play":     {usage: "play <history id>", run: runPlay},
		"download": {usage: "download <history id>", run: runDownload},
		"delete":   {usage: "delete <history id>", run: runDelete},
		"clone":    {usage: "clone create -name N -file F [-description D] | clone delete <id>", run: runClone},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses global flags, builds the app and dispatches to a command.
func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet(appName, flag.ContinueOnError)
	global.SetOutput(out)
	configPath := global.String(flagConfig, "", flagConfigDesc)
	verbose := global.Bool(flagVerbose, false, flagVerboseDesc)
	global.Usage = func() { printUsage(out) }

	err := global.Parse(args)
	if err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(out)

		return ErrNoCommand
	}

	cmd, ok := commands()[rest[0]]
	if !ok {
		printUsage(out)

		return fmt.Errorf(errFmtUnknownCommand, ErrUnknownCommand, rest[0])
	}

	application, err := newApp(*configPath, *verbose, out)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := application.log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	return cmd.run(ctx, application, rest[1:])
}

func printUsage(out io.Writer) {
	fmt.Fprintf(out, "Usage: %s [-config path] [-verbose] <command> [flags]\n\nCommands:\n", appName)

	for _, name := range []string{"voices", "generate", "history", "play", "download", "delete", "clone"} {
		fmt.Fprintf(out, "  %s\n", commands()[name].usage)
	}
}

// newApp loads configuration, opens the logger and wires the studio.
func newApp(configPath string, verbose bool, out io.Writer) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf(errFmtLoadConfig, err)
	}

	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf(errFmtInitLogger, err)
	}

	downloads, err := objectstore.NewFileStore(cfg.Paths.DownloadDir)
	if err != nil {
		log.Error("Failed to prepare download directory %s: %v", cfg.Paths.DownloadDir, err)

		return nil, fmt.Errorf(errFmtInitDownloads, err)
	}

	client := voiceapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout(), voiceapi.WithAuthToken(cfg.API.AuthToken))
	notifier := notify.Multi{notify.NewLogNotifier(log), consoleNotifier{out: out}}

	studio := session.New(
		client,
		playback.NewExecPlayer(cfg.Playback.Command, cfg.Playback.Args),
		downloads,
		notifier,
		log,
		session.WithLimits(cfg.Generation.MaxTextLength, cfg.Generation.MaxConcurrency),
		session.WithSourceLanguage(cfg.Generation.SourceLanguage),
	)

	log.Info("Voice studio client initialized against %s", cfg.API.BaseURL)

	return &app{
		cfg:       cfg,
		log:       log,
		client:    client,
		studio:    studio,
		downloads: downloads,
		out:       out,
	}, nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}

	bootstrapLog, err := logger.New(os.TempDir(), "voice-studio-bootstrap.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	return config.Load(bootstrapLog)
}

// consoleNotifier prints notifications for the terminal user.
type consoleNotifier struct {
	out io.Writer
}

func (c consoleNotifier) Notify(_ context.Context, n core.Notification) {
	fmt.Fprintf(c.out, outFmtNotice, n.Level, n.Message)
}

func runVoices(ctx context.Context, a *app, args []string) error {
	flags := flag.NewFlagSet("voices", flag.ContinueOnError)
	flags.SetOutput(a.out)
	voiceType := flags.String(flagType, string(core.VoiceTypeProfile), flagTypeDesc)
	gender := flags.String(flagGender, "", flagGenderDesc)
	emotion := flags.String(flagEmotion, "", flagEmotionDesc)
	language := flags.String(flagLanguage, "", flagFilterLangDesc)

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	parsedType, err := core.ParseVoiceType(*voiceType)
	if err != nil {
		return err
	}

	err = a.studio.LoadVoices(ctx)
	if err != nil {
		return err
	}

	a.studio.SetVoiceType(parsedType)

	table := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tNAME\tGENDER\tEMOTION\tLANGUAGE\tSTATUS")

	for _, target := range a.studio.Voices(core.ProfileFilter{Gender: *gender, Emotion: *emotion, Language: *language}) {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\t%s\n",
			target.ID, target.Name, target.Gender, target.Emotion, target.Language, target.Status)
	}

	return table.Flush()
}

func runGenerate(ctx context.Context, a *app, args []string) error {
	flags := flag.NewFlagSet("generate", flag.ContinueOnError)
	flags.SetOutput(a.out)
	text := flags.String(flagText, "", flagTextDesc)
	voices := flags.String(flagVoices, "", flagVoicesDesc)
	voiceType := flags.String(flagType, string(core.VoiceTypeProfile), flagTypeDesc)
	translate := flags.Bool(flagTranslate, false, flagTranslateDesc)
	language := flags.String(flagLanguage, a.cfg.Generation.DefaultTargetLanguage, flagLanguageDesc)
	source := flags.String(flagSource, a.cfg.Generation.SourceLanguage, flagSourceDesc)
	download := flags.Bool(flagDownload, false, flagDownloadDesc)
	play := flags.Bool(flagPlay, false, flagPlayDesc)

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	parsedType, err := core.ParseVoiceType(*voiceType)
	if err != nil {
		return err
	}

	targets, err := parseTargetIDs(*voices)
	if err != nil {
		return err
	}

	// Clone readiness is only known once the catalog is loaded.
	if parsedType == core.VoiceTypeClone {
		err = a.studio.LoadVoices(ctx)
		if err != nil {
			return err
		}
	}

	err = a.studio.SelectTargets(ctx, parsedType, targets)
	if err != nil {
		return err
	}

	a.studio.SetText(*text)
	a.studio.SetTranslation(core.TranslationConfig{
		Enabled:        *translate,
		TargetLanguage: *language,
		SourceLanguage: *source,
	})

	result, err := a.studio.Generate(ctx)
	if err != nil {
		return err
	}

	if result.Translation.Translated {
		fmt.Fprintf(a.out, outFmtTranslated, result.Text)
	}

	batch := a.studio.History()[:len(result.Results)]

	for _, entry := range batch {
		audioURL, _ := a.client.AudioURL(entry.AudioFile)
		fmt.Fprintf(a.out, outFmtResult, entry.ID, audioURL)
	}

	if *download {
		for _, entry := range batch {
			err = a.saveEntry(ctx, entry)
			if err != nil {
				return err
			}
		}
	}

	if *play && len(batch) > 0 {
		return a.playEntry(ctx, batch[0])
	}

	return nil
}

func runHistory(ctx context.Context, a *app, _ []string) error {
	err := a.studio.LoadHistory(ctx)
	if err != nil {
		return err
	}

	table := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tCREATED\tDURATION\tTEXT")

	for _, entry := range a.studio.History() {
		created := ""
		if !entry.CreatedAt.IsZero() {
			created = entry.CreatedAt.Local().Format(time.DateTime)
		}

		fmt.Fprintf(table, "%s\t%s\t%s\t%s\n",
			entry.ID, created, fileutil.ClipLength(entry.DurationSeconds), truncate(entry.InputText, historyTextWidth))
	}

	return table.Flush()
}

func runPlay(ctx context.Context, a *app, args []string) error {
	entry, err := a.historyEntry(ctx, args)
	if err != nil {
		return err
	}

	return a.playEntry(ctx, entry)
}

func runDownload(ctx context.Context, a *app, args []string) error {
	entry, err := a.historyEntry(ctx, args)
	if err != nil {
		return err
	}

	return a.saveEntry(ctx, entry)
}

func runDelete(ctx context.Context, a *app, args []string) error {
	entry, err := a.historyEntry(ctx, args)
	if err != nil {
		return err
	}

	return a.studio.Delete(ctx, entry.Key)
}

func runClone(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: clone create|delete", ErrMissingArgument)
	}

	switch args[0] {
	case "create":
		return a.createClone(ctx, args[1:])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("%w: clone id", ErrMissingArgument)
		}

		id, err := core.ParseTargetID(args[1])
		if err != nil {
			return err
		}

		err = a.client.DeleteClone(ctx, id)
		if err != nil {
			return err
		}

		fmt.Fprintf(a.out, "Deleted clone %s\n", id)

		return nil
	default:
		return fmt.Errorf(errFmtUnknownCommand, ErrUnknownCommand, "clone "+args[0])
	}
}

func (a *app) createClone(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("clone create", flag.ContinueOnError)
	flags.SetOutput(a.out)
	name := flags.String(flagName, "", flagNameDesc)
	description := flags.String(flagDescription, "", flagDescriptionDesc)
	file := flags.String(flagFile, "", flagFileDesc)

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	if *file == "" {
		return fmt.Errorf("%w: -%s", ErrMissingArgument, flagFile)
	}

	if !fileutil.IsValidAudioFile(*file) {
		return fmt.Errorf("%w: %s", ErrUnsupportedAudio, fileutil.GetFileExtension(*file))
	}

	sample, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf(errFmtOpenSample, *file, err)
	}
	defer sample.Close()

	clone, err := a.client.CreateClone(ctx, core.CloneUpload{
		Name:        *name,
		Description: *description,
		FileName:    filepath.Base(*file),
		Audio:       sample,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, outFmtClone, clone.ID, clone.Status)

	return nil
}

// historyEntry loads the backend history and finds the record named by args[0].
func (a *app) historyEntry(ctx context.Context, args []string) (history.Entry, error) {
	if len(args) == 0 {
		return history.Entry{}, fmt.Errorf("%w: history id", ErrMissingArgument)
	}

	id, err := parseResultID(args[0])
	if err != nil {
		return history.Entry{}, err
	}

	err = a.studio.LoadHistory(ctx)
	if err != nil {
		return history.Entry{}, err
	}

	entry, ok := a.studio.FindResult(id)
	if !ok {
		return history.Entry{}, fmt.Errorf("%w: %s", session.ErrEntryNotFound, id)
	}

	return entry, nil
}

func (a *app) saveEntry(ctx context.Context, entry history.Entry) error {
	key, err := a.studio.Download(ctx, entry.Key)
	if err != nil {
		return err
	}

	path, err := a.downloads.Path(key)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, outFmtSaved, path)

	return nil
}

// playEntry starts playback and blocks until the clip ends or ctx is cancelled.
func (a *app) playEntry(ctx context.Context, entry history.Entry) error {
	state, err := a.studio.TogglePlayback(ctx, entry.Key)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, outFmtPlaying, entry.ID)

	ticker := time.NewTicker(playbackPoll)
	defer ticker.Stop()

	for state.Playing {
		select {
		case <-ctx.Done():
			a.studio.StopPlayback()

			return nil
		case <-ticker.C:
			state = a.studio.Status().Playback
		}
	}

	return nil
}

func parseTargetIDs(value string) ([]core.TargetID, error) {
	var ids []core.TargetID

	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		id, err := core.ParseTargetID(field)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func parseResultID(value string) (core.ResultID, error) {
	id, err := core.ParseTargetID(value)
	if err != nil {
		return 0, fmt.Errorf(errFmtBadID, value, err)
	}

	return core.ResultID(id), nil
}

func truncate(text string, width int) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= width {
		return string(runes)
	}

	return string(runes[:width-3]) + "..."
}
