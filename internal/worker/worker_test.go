package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/models"
	"github.com/reelsmith/reelsmith/internal/repository"
	"github.com/reelsmith/reelsmith/internal/storage"
)

type fakeModel struct {
	chat      func(system, user string) (string, error)
	chatImage func(system, user, imagePath string) (string, error)
}

func (f *fakeModel) Chat(_ context.Context, system, user string) (string, error) {
	if f.chat == nil {
		return "", fmt.Errorf("unexpected Chat call")
	}
	return f.chat(system, user)
}

func (f *fakeModel) ChatWithImage(_ context.Context, system, user, imagePath string) (string, error) {
	if f.chatImage == nil {
		return "", fmt.Errorf("unexpected ChatWithImage call")
	}
	return f.chatImage(system, user, imagePath)
}

type fakeRunner struct {
	fn func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	return f.fn(name, args)
}

type env struct {
	worker   *Worker
	projects *repository.ProjectRepository
	segments *repository.SegmentRepository
	jobs     *repository.JobRepository
	layout   *storage.Layout
	root     string
}

func newEnv(t *testing.T, model *fakeModel, runFn func(name string, args []string) ([]byte, error)) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Project{}, &models.ProjectOwner{}, &models.Segment{}, &models.Job{},
	))

	log := slog.New(slog.DiscardHandler)
	root := t.TempDir()
	layout := storage.NewLayout(root)

	media := ffmpeg.New(config.MediaConfig{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		ConcatMode:  "copy",
	}, log)
	if runFn != nil {
		media = media.WithRunner(&fakeRunner{fn: runFn})
	}

	projects := repository.NewProjectRepository(db)
	segments := repository.NewSegmentRepository(db)
	jobs := repository.NewJobRepository(db)

	w := New(config.WorkerConfig{PollInterval: 10 * time.Millisecond},
		projects, segments, jobs, layout, media, model, log)
	return &env{worker: w, projects: projects, segments: segments, jobs: jobs, layout: layout, root: root}
}

func (e *env) createProject(t *testing.T, mutate func(*models.Project)) *models.Project {
	t.Helper()
	p := &models.Project{
		UserPrompt:           "coffee brewing",
		Pacing:               models.PacingNormal,
		TotalDurationSeconds: 30,
		SegmentDuration:      15,
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, e.projects.Create(context.Background(), p))
	return p
}

func (e *env) enqueue(t *testing.T, projectID models.ULID, jobType models.JobType, payload models.JobPayload) *models.Job {
	t.Helper()
	job := &models.Job{ProjectID: projectID, Type: jobType, Status: models.JobStatusQueued}
	require.NoError(t, job.SetPayload(payload))
	require.NoError(t, e.jobs.Create(context.Background(), job))
	return job
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func intPtr(i int) *int { return &i }

func TestFullScriptJobRegeneratesEverything(t *testing.T) {
	model := &fakeModel{chat: func(system, user string) (string, error) {
		assert.Contains(t, user, "coffee brewing")
		return "  a fresh script  ", nil
	}}
	e := newEnv(t, model, nil)
	ctx := context.Background()

	p := e.createProject(t, func(p *models.Project) {
		p.FullScript = "stale"
		p.CanonSummaries = "[#IDX=0] #001 (0s-15s): old scene"
		p.CurrentSegmentIndex = 2
	})
	finalPath := e.layout.FinalVideoPath(p.ID.String())
	writeFile(t, finalPath, "old video")
	p.FinalVideoPath = finalPath
	require.NoError(t, e.projects.Update(ctx, p))

	require.NoError(t, e.segments.Upsert(ctx, &models.Segment{
		ProjectID: p.ID, Index: 0,
		SegmentScript: "old", VideoPath: "/tmp/x.mp4",
		Status: models.SegmentStatusCompleted,
	}))

	job := e.enqueue(t, p.ID, models.JobTypeFullScript, models.JobPayload{Locale: "en"})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, job.Status)
	assert.Equal(t, 100, job.Progress)
	result := job.DecodeResult()
	require.NotNil(t, result.UIMessage)
	assert.Equal(t, "jobmsg.succeeded", result.UIMessage.Key)
	assert.EqualValues(t, len([]rune("a fresh script")), result.Data["full_script_len"])

	p, err = e.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a fresh script", p.FullScript)
	assert.Empty(t, p.CanonSummaries)
	assert.Zero(t, p.CurrentSegmentIndex)
	assert.Empty(t, p.FinalVideoPath)
	assert.NoFileExists(t, finalPath)

	seg, err := e.segments.Get(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentStatusPending, seg.Status)
	assert.Empty(t, seg.VideoPath)

	data, err := os.ReadFile(e.layout.FullScriptPath(p.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, "a fresh script", string(data))
}

func TestSegmentGenerateParsesModelJSON(t *testing.T) {
	var seenUser string
	model := &fakeModel{chat: func(system, user string) (string, error) {
		seenUser = user
		return "```json\n{\"script\": \"hello world\", \"video_prompt\": \"a wide shot\", \"continuity\": \"same mug\"}\n```", nil
	}}
	e := newEnv(t, model, nil)
	ctx := context.Background()

	p := e.createProject(t, func(p *models.Project) {
		p.FullScript = "the full script"
		p.CanonSummaries = "[#IDX=0] #001 (0s-15s): a barista pours\n---\n[#IDX=1] #002 (15s-30s): stale later scene"
		p.CurrentSegmentIndex = 2
	})

	job := e.enqueue(t, p.ID, models.JobTypeSegmentGenerate, models.JobPayload{Index: intPtr(1), Locale: "en"})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusSucceeded, job.Status, "error: %s", job.Error)
	assert.EqualValues(t, 1, job.DecodeResult().Data["index"])

	seg, err := e.segments.Get(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "hello world", seg.SegmentScript)
	assert.Equal(t, "a wide shot", seg.VideoPrompt)
	assert.Equal(t, models.SegmentStatusScriptReady, seg.Status)

	p, err = e.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentSegmentIndex)
	// Canon entries at or past the regenerated index are dropped.
	assert.Contains(t, p.CanonSummaries, "[#IDX=0]")
	assert.NotContains(t, p.CanonSummaries, "[#IDX=1]")

	// The model saw the surviving canon context.
	assert.Contains(t, seenUser, "a barista pours")

	data, err := os.ReadFile(e.layout.SegmentTextPath(p.ID.String(), 1))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello world")
	assert.Contains(t, string(data), "a wide shot")
}

func TestSegmentGenerateWithoutFullScriptFails(t *testing.T) {
	e := newEnv(t, &fakeModel{}, nil)
	ctx := context.Background()

	p := e.createProject(t, nil)
	job := e.enqueue(t, p.ID, models.JobTypeSegmentGenerate, models.JobPayload{Index: intPtr(0)})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.ErrFullScriptMissing.Error(), job.Error)
	result := job.DecodeResult()
	require.NotNil(t, result.UIMessage)
	assert.Equal(t, "jobmsg.failed", result.UIMessage.Key)
}

func TestSegmentGenerateIndexOutOfRange(t *testing.T) {
	e := newEnv(t, &fakeModel{}, nil)
	ctx := context.Background()

	p := e.createProject(t, func(p *models.Project) { p.FullScript = "script" })
	job := e.enqueue(t, p.ID, models.JobTypeSegmentGenerate, models.JobPayload{Index: intPtr(2)})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, models.ErrIndexOutOfRange.Error(), job.Error)
}

func TestAnalyzeJobCompletesSegmentAndExtendsCanon(t *testing.T) {
	model := &fakeModel{chatImage: func(system, user, imagePath string) (string, error) {
		assert.FileExists(t, imagePath)
		return "A barista steams milk at a wooden counter.\n[[CANON_SUMMARY]] barista at wooden counter, warm light", nil
	}}
	runFn := func(name string, args []string) ([]byte, error) {
		if name == "ffmpeg" {
			// Frame extraction writes the output path, which is the last arg.
			writeFileRaw(args[len(args)-1], "jpegdata")
		}
		return nil, nil
	}
	e := newEnv(t, model, runFn)
	ctx := context.Background()

	p := e.createProject(t, func(p *models.Project) { p.FullScript = "script" })
	video := filepath.Join(e.root, "upload.mp4")
	writeFile(t, video, "videodata")
	require.NoError(t, e.segments.Upsert(ctx, &models.Segment{
		ProjectID: p.ID, Index: 0,
		SegmentScript: "hello", VideoPrompt: "shot",
		VideoPath: video, Status: models.SegmentStatusWaitingVideo,
	}))

	job := e.enqueue(t, p.ID, models.JobTypeAnalyze, models.JobPayload{Index: intPtr(0), Locale: "en"})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusSucceeded, job.Status, "error: %s", job.Error)

	seg, err := e.segments.Get(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentStatusCompleted, seg.Status)
	assert.Contains(t, seg.VideoDescription, "steams milk")
	assert.Equal(t, e.layout.FramePath(p.ID.String(), 0), seg.LastFramePath)

	p, err = e.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentSegmentIndex)
	assert.Equal(t, seg.LastFramePath, p.LastFramePath)
	assert.Contains(t, p.CanonSummaries, "[#IDX=0] #001 (0s-15s): barista at wooden counter")
}

func TestAnalyzeFailureMarksSegmentFailed(t *testing.T) {
	model := &fakeModel{chatImage: func(system, user, imagePath string) (string, error) {
		return "", fmt.Errorf("model unavailable")
	}}
	runFn := func(name string, args []string) ([]byte, error) {
		if name == "ffmpeg" {
			writeFileRaw(args[len(args)-1], "jpegdata")
		}
		return nil, nil
	}
	e := newEnv(t, model, runFn)
	ctx := context.Background()

	p := e.createProject(t, func(p *models.Project) { p.FullScript = "script" })
	video := filepath.Join(e.root, "upload.mp4")
	writeFile(t, video, "videodata")
	require.NoError(t, e.segments.Upsert(ctx, &models.Segment{
		ProjectID: p.ID, Index: 0, VideoPath: video,
		Status: models.SegmentStatusWaitingVideo,
	}))

	job := e.enqueue(t, p.ID, models.JobTypeAnalyze, models.JobPayload{Index: intPtr(0)})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "model unavailable")

	seg, err := e.segments.Get(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentStatusFailed, seg.Status)
	assert.Equal(t, video, seg.VideoPath, "failed analysis keeps the uploaded video")
}

func TestAssembleJob(t *testing.T) {
	var out string
	runFn := func(name string, args []string) ([]byte, error) {
		switch name {
		case "ffprobe":
			path := args[len(args)-1]
			if path == out {
				return probeJSON("30.0", "30.0", "30.0"), nil
			}
			return probeJSON("15.0", "15.0", "15.0"), nil
		case "ffmpeg":
			writeFileRaw(args[len(args)-1], "finalvideo")
		}
		return nil, nil
	}
	e := newEnv(t, &fakeModel{}, runFn)
	ctx := context.Background()

	p := e.createProject(t, func(p *models.Project) { p.FullScript = "script" })
	out = e.layout.FinalVideoPath(p.ID.String())
	for i := 0; i < 2; i++ {
		video := filepath.Join(e.root, fmt.Sprintf("seg%d.mp4", i))
		writeFile(t, video, "videodata")
		require.NoError(t, e.segments.Upsert(ctx, &models.Segment{
			ProjectID: p.ID, Index: i, VideoPath: video,
			Status: models.SegmentStatusCompleted,
		}))
	}

	job := e.enqueue(t, p.ID, models.JobTypeAssemble, models.JobPayload{})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusSucceeded, job.Status, "error: %s", job.Error)
	assert.EqualValues(t, 2, job.DecodeResult().Data["num_segments"])

	p, err = e.projects.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, out, p.FinalVideoPath)
	assert.FileExists(t, out)
}

func TestAssembleMissingVideoFails(t *testing.T) {
	e := newEnv(t, &fakeModel{}, nil)
	ctx := context.Background()

	p := e.createProject(t, func(p *models.Project) { p.FullScript = "script" })
	video := filepath.Join(e.root, "seg0.mp4")
	writeFile(t, video, "videodata")
	require.NoError(t, e.segments.Upsert(ctx, &models.Segment{
		ProjectID: p.ID, Index: 0, VideoPath: video,
		Status: models.SegmentStatusCompleted,
	}))

	job := e.enqueue(t, p.ID, models.JobTypeAssemble, models.JobPayload{})
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "segment 1")
}

func TestRunOncePerProjectExclusivity(t *testing.T) {
	model := &fakeModel{chat: func(system, user string) (string, error) { return "script", nil }}
	e := newEnv(t, model, nil)
	ctx := context.Background()

	p := e.createProject(t, nil)
	blocker := e.enqueue(t, p.ID, models.JobTypeFullScript, models.JobPayload{})
	blocker.Status = models.JobStatusRunning
	require.NoError(t, e.jobs.Update(ctx, blocker))

	queued := e.enqueue(t, p.ID, models.JobTypeFullScript, models.JobPayload{})
	assert.False(t, e.worker.runOnce(ctx), "busy project must not start a second job")

	got, err := e.jobs.GetByID(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)

	blocker.Status = models.JobStatusSucceeded
	require.NoError(t, e.jobs.Update(ctx, blocker))
	assert.True(t, e.worker.runOnce(ctx))

	got, err = e.jobs.GetByID(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, got.Status)
}

func TestRunOnceSkipsBusyProject(t *testing.T) {
	model := &fakeModel{chat: func(system, user string) (string, error) { return "script", nil }}
	e := newEnv(t, model, nil)
	ctx := context.Background()

	busy := e.createProject(t, nil)
	running := e.enqueue(t, busy.ID, models.JobTypeFullScript, models.JobPayload{})
	running.Status = models.JobStatusRunning
	require.NoError(t, e.jobs.Update(ctx, running))
	blocked := e.enqueue(t, busy.ID, models.JobTypeFullScript, models.JobPayload{})

	idle := e.createProject(t, nil)
	runnable := e.enqueue(t, idle.ID, models.JobTypeFullScript, models.JobPayload{})

	require.True(t, e.worker.runOnce(ctx), "an idle project's job must run past a busy project's queue")

	got, err := e.jobs.GetByID(ctx, runnable.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, got.Status, "error: %s", got.Error)

	got, err = e.jobs.GetByID(ctx, blocked.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
}

func TestUnknownJobTypeFails(t *testing.T) {
	e := newEnv(t, &fakeModel{}, nil)
	ctx := context.Background()

	p := e.createProject(t, nil)
	job := &models.Job{ProjectID: p.ID, Type: "bogus", Status: models.JobStatusQueued}
	require.NoError(t, e.jobs.Create(ctx, job))
	e.worker.Execute(ctx, job)

	job, err := e.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "unknown job type")
}

func probeJSON(videoDur, formatDur, audioDur string) []byte {
	streams := fmt.Sprintf(`{"index":0,"codec_type":"video","codec_name":"h264","duration":"%s"}`, videoDur)
	if audioDur != "" {
		streams += fmt.Sprintf(`,{"index":1,"codec_type":"audio","codec_name":"aac","duration":"%s","sample_rate":"44100","channels":2}`, audioDur)
	}
	return []byte(fmt.Sprintf(`{"format":{"duration":"%s"},"streams":[%s]}`, formatDur, streams))
}

func writeFileRaw(path, content string) {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = os.WriteFile(path, []byte(content), 0o644)
}
