package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"storyreel/config"
	"storyreel/llm"
	"storyreel/media"
	"storyreel/pipeline"
	"storyreel/publish"
	"storyreel/storyboard"
	"storyreel/store"
	"storyreel/task"
	"storyreel/template"
	"storyreel/tts"
	"storyreel/video"
)

func main() {
	// Load .env for local dev; deployed runs use real env vars.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "generate":
		err = app.generate(args)
	case "list":
		err = app.list(args)
	case "show":
		err = app.show(args)
	case "duplicate":
		err = app.duplicate(args)
	case "delete":
		err = app.delete(args)
	case "rebuild-index":
		err = app.rebuildIndex()
	case "stats":
		err = app.stats()
	case "publish":
		err = app.publish(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `storyreel <command>

Commands:
  generate       Run a text-to-video job
  list           List stored tasks
  show           Show one task's full record
  duplicate      Re-run a stored task's input as a new job
  delete         Remove a stored task
  rebuild-index  Rebuild the task index from disk
  stats          Aggregate numbers across all tasks
  publish        Upload a finished task's video to YouTube`)
}

// app holds every wired service for the process lifetime.
type app struct {
	cfg       *config.Config
	store     *store.Store
	tasks     *task.Manager
	pipelines *pipeline.Registry
	uploader  *publish.Uploader
}

func newApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(cfg.Paths.Output)
	if err != nil {
		return nil, err
	}

	std := &pipeline.Standard{
		LLM:          llm.New(cfg.LLM.BaseURL, cfg.LLM.Model, ""),
		TTS:          tts.NewClient(cfg.TTS.Command, cfg.TTS.Endpoint),
		Media:        media.NewClient(cfg.Media.Endpoint),
		Renderer:     template.NewRenderer(),
		Video:        video.New(),
		Store:        st,
		TemplatesDir: cfg.Templates.Dir,
		WorkDir:      cfg.Paths.Output,
		Defaults: pipeline.Defaults{
			NumScenes:         cfg.Pipeline.NumScenes,
			MinNarrationWords: cfg.Pipeline.MinNarrationWords,
			MaxNarrationWords: cfg.Pipeline.MaxNarrationWords,
			MinPromptWords:    cfg.Pipeline.MinPromptWords,
			MaxPromptWords:    cfg.Pipeline.MaxPromptWords,
			PromptBatchSize:   cfg.Pipeline.PromptBatchSize,
			VideoFPS:          cfg.Video.FPS,
			TTSMode:           storyboard.TTSMode(cfg.TTS.Mode),
			Voice:             cfg.TTS.Voice,
			FrameTemplate:     cfg.Templates.Default,
			PromptPrefix:      cfg.Pipeline.PromptPrefix,
		},
	}

	reg := pipeline.NewRegistry()
	reg.Register(std)

	return &app{
		cfg:       cfg,
		store:     st,
		tasks:     task.NewManager(task.NewMetrics(prometheus.NewRegistry())),
		pipelines: reg,
		uploader:  publish.New(),
	}, nil
}

func (a *app) generate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	text := fs.String("text", "", "topic (generate mode) or full script (fixed mode)")
	mode := fs.String("mode", "generate", "generate | fixed")
	title := fs.String("title", "", "explicit video title")
	scenes := fs.Int("scenes", 0, "number of scenes (generate mode)")
	tmpl := fs.String("template", "", "frame template ref, e.g. 1080x1920/default.html")
	workflow := fs.String("workflow", "", "media generation workflow id")
	prefix := fs.String("prompt-prefix", "", "style prefix prepended to every media prompt")
	bgmPath := fs.String("bgm", "", "background music file")
	bgmVolume := fs.Float64("bgm-volume", 0.2, "background music volume")
	bgmLoop := fs.Bool("bgm-loop", false, "loop background music to cover the video")
	output := fs.String("output", "", "copy the final video here")
	variant := fs.String("pipeline", "standard", "pipeline variant")
	fs.Parse(args)

	if *text == "" {
		return fmt.Errorf("--text is required")
	}

	p, err := a.pipelines.Get(*variant)
	if err != nil {
		return err
	}

	params := pipeline.Params{
		Text:          *text,
		Mode:          pipeline.Mode(*mode),
		Title:         *title,
		NumScenes:     *scenes,
		FrameTemplate: *tmpl,
		MediaWorkflow: *workflow,
		PromptPrefix:  *prefix,
		OutputPath:    *output,
		TTSSpeed:      a.cfg.TTS.Speed,
		TTSWorkflow:   a.cfg.TTS.Workflow,
		RefAudio:      a.cfg.TTS.RefAudio,
	}
	if params.MediaWorkflow == "" {
		params.MediaWorkflow = a.cfg.Media.Workflow
	}
	if *bgmPath != "" {
		bgmMode := video.BGMOnce
		if *bgmLoop {
			bgmMode = video.BGMLoop
		}
		params.BGM = video.BGMOptions{Path: *bgmPath, Volume: *bgmVolume, Mode: bgmMode}
	}

	return a.runJob(p, params)
}

// runJob tracks one pipeline run as a background task and waits for it.
func (a *app) runJob(p pipeline.Pipeline, params pipeline.Params) error {
	created, err := a.tasks.Create(p.Name(), params)
	if err != nil {
		return err
	}
	params.TaskID = created.ID

	if err := a.store.SaveTaskMetadata(&store.TaskMetadata{
		TaskID:    created.ID,
		Status:    string(task.StatusRunning),
		Input:     created.Input,
		CreatedAt: created.CreatedAt,
	}); err != nil {
		log.Printf("Could not record task %s: %v", created.ID, err)
	}

	log.Printf("🎬 Task %s started", created.ID)

	done := make(chan struct{})
	err = a.tasks.Execute(created.ID, func(ctx context.Context) (*storyboard.Result, error) {
		defer close(done)
		return p.Run(ctx, params, printProgress)
	})
	if err != nil {
		return err
	}
	<-done

	finished, err := a.tasks.Get(created.ID)
	if err != nil {
		return err
	}
	if finished.Status == task.StatusFailed {
		if uerr := a.store.UpdateTaskStatus(created.ID, string(task.StatusFailed), finished.Error); uerr != nil {
			log.Printf("Could not record failure of task %s: %v", created.ID, uerr)
		}
		return fmt.Errorf("task %s failed: %s", created.ID, finished.Error)
	}

	log.Printf("✅ Task %s complete! Video: %s", created.ID, finished.Result.VideoPath)
	return nil
}

func printProgress(ev storyboard.ProgressEvent) {
	switch ev.Kind {
	case storyboard.EventFrameStep:
		log.Printf("  [%3.0f%%] frame %d/%d step %d (%s)",
			ev.Progress*100, ev.FrameCurrent, ev.FrameTotal, ev.Step, ev.Action)
	case storyboard.EventFailed:
		log.Printf("  [stop] %s", ev.Message)
	default:
		log.Printf("  [%3.0f%%] %s", ev.Progress*100, ev.Kind)
	}
}

func (a *app) list(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "filter by status")
	sortBy := fs.String("sort", "created_at", "created_at | completed_at | title | duration")
	desc := fs.Bool("desc", true, "descending order")
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", 20, "entries per page")
	fs.Parse(args)

	result, err := a.store.List(store.ListOptions{
		Status:     *status,
		SortBy:     store.SortKey(*sortBy),
		Descending: *desc,
		Page:       *page,
		PageSize:   *pageSize,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Page %d/%d (%d tasks)\n", result.Page, result.TotalPages, result.Total)
	for _, e := range result.Items {
		fmt.Printf("%s  %-9s  %6.1fs  %s\n", e.TaskID, e.Status, e.Duration, e.Title)
	}
	return nil
}

func (a *app) show(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <task-id>")
	}
	detail, err := a.store.Detail(args[0])
	if err != nil {
		return err
	}
	return printJSON(detail)
}

func (a *app) duplicate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: duplicate <task-id>")
	}
	input, err := a.store.DuplicateParams(args[0])
	if err != nil {
		return err
	}

	var params pipeline.Params
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Errorf("stored input of %s is not pipeline params: %w", args[0], err)
	}

	p, err := a.pipelines.Get("standard")
	if err != nil {
		return err
	}
	log.Printf("Re-running input of task %s", args[0])
	return a.runJob(p, params)
}

func (a *app) delete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <task-id>")
	}
	if err := a.store.Delete(args[0]); err != nil {
		return err
	}
	log.Printf("Deleted task %s", args[0])
	return nil
}

func (a *app) rebuildIndex() error {
	n, err := a.store.RebuildIndex()
	if err != nil {
		return err
	}
	log.Printf("Index rebuilt: %d tasks", n)
	return nil
}

func (a *app) stats() error {
	stats, err := a.store.Stats()
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func (a *app) publish(args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	taskID := fs.String("task", "", "task id of the finished job")
	title := fs.String("title", "", "override video title")
	description := fs.String("description", "", "video description")
	tags := fs.String("tags", "", "comma-separated tags")
	privacy := fs.String("privacy", "unlisted", "public | unlisted | private")
	fs.Parse(args)

	if *taskID == "" {
		return fmt.Errorf("--task is required")
	}

	detail, err := a.store.Detail(*taskID)
	if err != nil {
		return err
	}
	if detail.Metadata.Result == nil || detail.Metadata.Result.VideoPath == "" {
		return fmt.Errorf("task %s has no finished video", *taskID)
	}

	v := publish.Video{
		Path:        detail.Metadata.Result.VideoPath,
		Title:       *title,
		Description: *description,
		Privacy:     *privacy,
	}
	if v.Title == "" && detail.Storyboard != nil {
		v.Title = detail.Storyboard.Title
	}
	if *tags != "" {
		v.Tags = strings.Split(*tags, ",")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	_, url, err := a.uploader.Upload(ctx, v)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
