package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rispacs/ris/internal/domain/lab"
	"github.com/rispacs/ris/internal/domain/patient"
	"github.com/rispacs/ris/internal/domain/study"
	"github.com/rispacs/ris/internal/platform/dicom"
	"github.com/rispacs/ris/internal/platform/jobs"
	"github.com/rispacs/ris/internal/platform/resultcache"
)

// Job types handled by this service.
const (
	JobTypeProcessInstance = "process-instance"
	JobTypeSelfTest        = "self-test"
)

// MetadataFetcher retrieves instance tags from the imaging archive.
type MetadataFetcher interface {
	InstanceTags(ctx context.Context, instanceID string) (dicom.Tags, error)
	System(ctx context.Context) (map[string]any, error)
}

// PatientResolver maps instance tags to a patient record.
type PatientResolver interface {
	Resolve(ctx context.Context, tags dicom.Tags) (*patient.Patient, error)
}

// LabResolver returns the source facility record.
type LabResolver interface {
	ResolveSource(ctx context.Context) (*lab.Lab, error)
}

// StudyIngester folds one instance into its study.
type StudyIngester interface {
	Ingest(ctx context.Context, in study.IngestInput) (*study.Study, bool, error)
}

// Outcome is the terminal result of one ingestion request, stored in the
// result cache and served to polling clients.
type Outcome struct {
	Success          bool             `json:"success"`
	InstanceID       string           `json:"instanceId"`
	StudyDatabaseID  string           `json:"studyDatabaseId,omitempty"`
	PatientID        string           `json:"patientId,omitempty"`
	SOPInstanceUID   string           `json:"sopInstanceUID,omitempty"`
	StudyInstanceUID string           `json:"studyInstanceUID,omitempty"`
	ProcessedAt      *time.Time       `json:"processedAt,omitempty"`
	FailedAt         *time.Time       `json:"failedAt,omitempty"`
	ElapsedMS        int64            `json:"elapsedTime,omitempty"`
	Error            string           `json:"error,omitempty"`
	MetadataSummary  *MetadataSummary `json:"metadataSummary,omitempty"`
}

// MetadataSummary is the human-oriented slice of the outcome.
type MetadataSummary struct {
	PatientName string `json:"patientName"`
	PatientID   string `json:"patientId"`
	Modality    string `json:"modality"`
	StudyDate   string `json:"studyDate"`
}

// StatusResponse is the status endpoint's view of one request.
type StatusResponse struct {
	Status    string          `json:"status"`
	RequestID string          `json:"requestId"`
	JobID     int64           `json:"jobId,omitempty"`
	Progress  *int            `json:"progress,omitempty"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Service drives the asynchronous ingestion pipeline: it enqueues
// notifications, processes them through fetch, resolve and upsert, and
// answers status polls from the result cache and the job table.
type Service struct {
	queue    *jobs.Queue
	fetcher  MetadataFetcher
	patients PatientResolver
	labs     LabResolver
	studies  StudyIngester
	cache    resultcache.Store
	ttl      time.Duration
	logger   zerolog.Logger
}

func NewService(queue *jobs.Queue, fetcher MetadataFetcher, patients PatientResolver,
	labs LabResolver, studies StudyIngester, cache resultcache.Store,
	ttl time.Duration, logger zerolog.Logger) *Service {
	s := &Service{
		queue:    queue,
		fetcher:  fetcher,
		patients: patients,
		labs:     labs,
		studies:  studies,
		cache:    cache,
		ttl:      ttl,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
	queue.Register(JobTypeProcessInstance, s.processInstance)
	queue.Register(JobTypeSelfTest, s.selfTest)
	return s
}

// NewRequestID generates a caller-visible correlation token.
func NewRequestID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), suffix)
}

// Submit enqueues processing of one archive instance and returns the job
// snapshot together with the request id to poll with. Never blocks on
// processing.
func (s *Service) Submit(instanceID string) (jobs.Job, string, error) {
	requestID := NewRequestID()
	job, err := s.queue.Submit(JobTypeProcessInstance, jobs.Payload{
		InstanceID:  instanceID,
		RequestID:   requestID,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		return jobs.Job{}, "", err
	}
	s.logger.Info().Int64("job_id", job.ID).Str("request_id", requestID).
		Str("instance_id", instanceID).Msg("instance queued")
	return job, requestID, nil
}

// Status answers a poll for requestID. The result cache is the durable
// source for terminal outcomes; the in-memory job table covers jobs that
// are still queued or running. The second return value reports whether
// anything was found.
func (s *Service) Status(ctx context.Context, requestID string) (*StatusResponse, bool, error) {
	raw, found, err := s.cache.Get(ctx, requestID)
	if err != nil {
		return nil, false, fmt.Errorf("result cache lookup: %w", err)
	}
	if found {
		status := "failed"
		var probe struct {
			Success bool `json:"success"`
		}
		if err := json.Unmarshal(raw, &probe); err == nil && probe.Success {
			status = "completed"
		}
		return &StatusResponse{Status: status, RequestID: requestID, Result: raw}, true, nil
	}

	job, ok := s.queue.JobByRequestID(requestID)
	if !ok {
		return nil, false, nil
	}
	progress := job.Progress
	createdAt := job.CreatedAt
	return &StatusResponse{
		Status:    string(job.Status),
		RequestID: requestID,
		JobID:     job.ID,
		Progress:  &progress,
		CreatedAt: &createdAt,
		Error:     job.Error,
	}, true, nil
}

// processInstance is the handler for one queued notification: fetch tags,
// resolve patient and lab, fold the instance into its study, and mirror
// the outcome into the result cache.
func (s *Service) processInstance(ctx context.Context, job jobs.Job, progress func(int)) (any, error) {
	instanceID := job.Payload.InstanceID
	requestID := job.Payload.RequestID
	start := time.Now()

	outcome, err := s.ingestOne(ctx, job, progress)
	if err != nil {
		now := time.Now()
		failure := Outcome{
			Success:    false,
			InstanceID: instanceID,
			Error:      err.Error(),
			FailedAt:   &now,
			ElapsedMS:  time.Since(start).Milliseconds(),
		}
		s.putOutcome(ctx, requestID, failure)
		return nil, err
	}

	outcome.ElapsedMS = time.Since(start).Milliseconds()
	s.putOutcome(ctx, requestID, *outcome)
	return *outcome, nil
}

func (s *Service) ingestOne(ctx context.Context, job jobs.Job, progress func(int)) (*Outcome, error) {
	instanceID := job.Payload.InstanceID

	progress(10)
	tags, err := s.fetcher.InstanceTags(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("fetch instance %s: %w", instanceID, err)
	}
	progress(30)

	studyUID := tags.String(dicom.TagStudyInstanceUID)
	if studyUID == "" {
		return nil, fmt.Errorf("StudyInstanceUID is missing from instance metadata")
	}
	sopUID := tags.String(dicom.TagSOPInstanceUID)
	progress(50)

	patientRec, err := s.patients.Resolve(ctx, tags)
	if err != nil {
		return nil, err
	}
	labRec, err := s.labs.ResolveSource(ctx)
	if err != nil {
		return nil, err
	}
	progress(70)

	studyRec, created, err := s.studies.Ingest(ctx, study.IngestInput{
		StudyInstanceUID: studyUID,
		SOPInstanceUID:   sopUID,
		ArchiveStudyID:   dicom.DerivedArchiveID(studyUID),
		AccessionNumber:  tags.String(dicom.TagAccessionNumber),
		StudyDate:        tags.String(dicom.TagStudyDate),
		StudyTime:        tags.String(dicom.TagStudyTime),
		Description:      tags.String(dicom.TagStudyDescription),
		Modality:         tags.String(dicom.TagModality),
		PatientID:        patientRec.ID,
		LabID:            labRec.ID,
		JobID:            job.ID,
	})
	if err != nil {
		return nil, err
	}
	progress(100)

	s.logger.Info().Str("study_uid", studyUID).Bool("created", created).
		Int64("job_id", job.ID).Msg("instance folded into study")

	now := time.Now()
	return &Outcome{
		Success:          true,
		InstanceID:       instanceID,
		StudyDatabaseID:  studyRec.ID.String(),
		PatientID:        patientRec.ID.String(),
		SOPInstanceUID:   sopUID,
		StudyInstanceUID: studyUID,
		ProcessedAt:      &now,
		MetadataSummary: &MetadataSummary{
			PatientName: patientRec.Name,
			PatientID:   patientRec.DisplayID,
			Modality:    orUnknown(tags.String(dicom.TagModality)),
			StudyDate:   orUnknown(tags.String(dicom.TagStudyDate)),
		},
	}, nil
}

func (s *Service) putOutcome(ctx context.Context, requestID string, outcome Outcome) {
	if err := s.cache.Put(ctx, requestID, outcome, s.ttl); err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Msg("store outcome in result cache")
	}
}

func (s *Service) selfTest(_ context.Context, _ jobs.Job, _ func(int)) (any, error) {
	return map[string]any{"success": true, "processedAt": time.Now()}, nil
}

func orUnknown(v string) string {
	if v == "" {
		return "Unknown"
	}
	return v
}
