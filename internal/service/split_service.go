package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/musichub/api/internal/client"
	"github.com/musichub/api/internal/model"
	"github.com/musichub/api/internal/store"
	"github.com/musichub/api/internal/websocket"
)

// SplitService owns the split-job lifecycle: it submits audio to the
// external worker and keeps the local job record consistent with the
// worker's asynchronous status reports. The worker is authoritative for
// live jobs; a local terminal record is authoritative forever.
type SplitService struct {
	store   store.Store
	worker  client.SplitWorker
	storage client.StorageClient // optional input archival, nil disables
	hub     *websocket.Hub       // optional push updates, nil disables
	locks   *keyMutex
	now     func() time.Time
}

func NewSplitService(recordStore store.Store, worker client.SplitWorker, storage client.StorageClient, hub *websocket.Hub) *SplitService {
	return &SplitService{
		store:   recordStore,
		worker:  worker,
		storage: storage,
		hub:     hub,
		locks:   newKeyMutex(),
		now:     time.Now,
	}
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

// Submit forwards the file to the worker and persists a queued local record
// under the worker-assigned job id.
func (s *SplitService) Submit(ctx context.Context, filename string, file io.Reader) (*model.SubmitSplitResponse, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	jobID, err := s.worker.CreateSplit(ctx, filename, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &model.SplitJob{
		ID:        jobID,
		Status:    model.JobStatusQueued,
		TrackName: trackName(filename),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.storage != nil {
		key := fmt.Sprintf("splitter/inputs/%s%s", jobID, filepath.Ext(filename))
		if _, err := s.storage.Upload(ctx, key, bytes.NewReader(data), "application/octet-stream"); err != nil {
			log.Printf("Failed to archive split input for job %s: %v", jobID, err)
		} else {
			job.InputPath = key
		}
	}

	unlock := s.locks.Lock(jobKey(jobID))
	defer unlock()

	if err := s.saveJob(ctx, job); err != nil {
		return nil, err
	}

	return &model.SubmitSplitResponse{
		JobID:     jobID,
		StatusURL: "/splitter/status/" + jobID,
	}, nil
}

// GetStatus reconciles the local record with the worker's view and returns
// the merged record.
//
// Terminal records are cached permanently: the worker is never re-queried
// for them, so a stale later response can never rewrite a finished job.
// A worker transport failure surfaces as UnavailableError and leaves the
// local record untouched.
func (s *SplitService) GetStatus(ctx context.Context, jobID string) (*model.SplitJob, error) {
	if jobID == "" {
		return nil, ErrJobNotFound
	}

	unlock := s.locks.Lock(jobKey(jobID))
	defer unlock()

	local, err := s.loadJob(ctx, jobID)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	if local != nil && local.Status.IsTerminal() {
		return local, nil
	}

	view, err := s.worker.JobStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, client.ErrWorkerJobNotFound) {
			return s.healNotFound(ctx, jobID, local)
		}
		// Transport failure or worker error response. Retryable, and the
		// local record must not be corrupted by it.
		return nil, err
	}

	if local == nil {
		// The worker knows a job we have no record of. Rebuild what we can.
		local = &model.SplitJob{
			ID:        jobID,
			Status:    model.JobStatusQueued,
			TrackName: "unknown",
			CreatedAt: s.now(),
		}
	}

	prev := local.Status
	local.Status = model.StatusFromWorker(view.Status)
	if view.Progress != "" {
		local.Progress = view.Progress
	}
	if view.Error != "" {
		local.Error = view.Error
	}
	if view.Result != nil {
		local.Result = view.Result
	}
	local.UpdatedAt = s.now()

	if err := s.saveJob(ctx, local); err != nil {
		return nil, err
	}

	s.notify(local, prev)
	return local, nil
}

// healNotFound resolves a worker 404: either the worker lost a job we track,
// or the caller asked about a job neither side knows. Both end in a
// persisted terminal error record so the remote lookup is never repeated.
func (s *SplitService) healNotFound(ctx context.Context, jobID string, local *model.SplitJob) (*model.SplitJob, error) {
	now := s.now()
	if local == nil {
		local = &model.SplitJob{
			ID:        jobID,
			TrackName: "unknown",
			CreatedAt: now,
		}
	}
	prev := local.Status
	local.Status = model.JobStatusError
	local.Error = "job not found on worker"
	local.UpdatedAt = now

	if err := s.saveJob(ctx, local); err != nil {
		return nil, err
	}
	s.notify(local, prev)
	return local, nil
}

// ReconcileAll re-drives every non-terminal job through reconciliation.
// Used by the background sweep to close out jobs whose clients stopped
// polling. Worker unavailability is logged and skipped, not fatal.
func (s *SplitService) ReconcileAll(ctx context.Context) error {
	keys, err := s.store.Keys(ctx, "job:")
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	for _, key := range keys {
		jobID := strings.TrimPrefix(key, "job:")

		job, err := s.loadJob(ctx, jobID)
		if err != nil || job.Status.IsTerminal() {
			continue
		}
		if _, err := s.GetStatus(ctx, jobID); err != nil {
			log.Printf("Reconcile sweep: job %s: %v", jobID, err)
		}
	}
	return nil
}

func (s *SplitService) notify(job *model.SplitJob, prev model.JobStatus) {
	if s.hub == nil || job.Status == prev && job.Progress == "" {
		return
	}
	s.hub.BroadcastStatus(job.ID, job.Status, job.Progress)
	if job.Status != prev {
		switch job.Status {
		case model.JobStatusDone:
			s.hub.BroadcastComplete(job.ID, job.Result)
		case model.JobStatusError:
			s.hub.BroadcastError(job.ID, job.Error)
		}
	}
}

func (s *SplitService) loadJob(ctx context.Context, jobID string) (*model.SplitJob, error) {
	data, err := s.store.Get(ctx, jobKey(jobID))
	if err != nil {
		return nil, err
	}
	var job model.SplitJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func (s *SplitService) saveJob(ctx context.Context, job *model.SplitJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := s.store.Put(ctx, jobKey(job.ID), data); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func trackName(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "unknown"
	}
	return name
}
