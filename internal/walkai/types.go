package walkai

import (
	"fmt"
	"time"
)

// GPUProfiles lists the MIG slices a job may request.
var GPUProfiles = []string{"1g.10gb", "2g.20gb", "3g.40gb", "4g.40gb", "7g.80gb"}

// DefaultGPUProfile is preselected in the submission form.
const DefaultGPUProfile = "1g.10gb"

// User is the session probe payload subset stride cares about.
type User struct {
	ID    int64
	Email string
}

// JobRun describes the latest Kubernetes run of a job. StartedAt and
// FinishedAt are empty while the run has not reached that point.
type JobRun struct {
	ID         int64
	Status     string
	JobName    string
	PodName    string
	StartedAt  string
	FinishedAt string
}

// ParsedStartedAt returns the start timestamp as time.Time when possible.
func (r JobRun) ParsedStartedAt() time.Time {
	return parseTime(r.StartedAt)
}

// ParsedFinishedAt returns the finish timestamp as time.Time when possible.
func (r JobRun) ParsedFinishedAt() time.Time {
	return parseTime(r.FinishedAt)
}

// Job is an immutable snapshot of one submitted job. Each successful jobs
// fetch supersedes the previous list wholesale; nothing is merged in place.
type Job struct {
	ID          int64
	Image       string
	GPUProfile  string
	SubmittedAt string
	CreatedByID int64
	LatestRun   *JobRun
}

// ParsedSubmittedAt returns the submission timestamp as time.Time when possible.
func (j Job) ParsedSubmittedAt() time.Time {
	return parseTime(j.SubmittedAt)
}

// RegistryImage is one entry of the read-only registry catalog.
type RegistryImage struct {
	Image    string
	Tag      string
	Digest   string
	PushedAt string
}

// SecretSummary names an attachable secret.
type SecretSummary struct {
	Name string
}

// SecretDetail lists the keys configured on a secret. It is fetched lazily,
// only while the secret is part of the current submission selection.
type SecretDetail struct {
	Name string
	Keys []string
}

// JobSubmission is the create-job request payload.
type JobSubmission struct {
	Image       string
	GPUProfile  string
	StorageGB   int
	SecretNames []string
}

// Wire representations use pointer fields so that structural validation can
// distinguish an absent or null field from a zero value.

type userWire struct {
	ID    *int64  `json:"id"`
	Email *string `json:"email"`
}

func (w userWire) toUser() (User, error) {
	if w.ID == nil {
		return User{}, fmt.Errorf("user missing id")
	}
	if w.Email == nil {
		return User{}, fmt.Errorf("user missing email")
	}
	return User{ID: *w.ID, Email: *w.Email}, nil
}

type jobRunWire struct {
	ID         *int64  `json:"id"`
	Status     *string `json:"status"`
	JobName    *string `json:"k8s_job_name"`
	PodName    *string `json:"k8s_pod_name"`
	StartedAt  *string `json:"started_at"`
	FinishedAt *string `json:"finished_at"`
}

func (w jobRunWire) toJobRun() (JobRun, error) {
	if w.ID == nil {
		return JobRun{}, fmt.Errorf("run missing id")
	}
	if w.Status == nil {
		return JobRun{}, fmt.Errorf("run %d missing status", *w.ID)
	}
	if w.JobName == nil || w.PodName == nil {
		return JobRun{}, fmt.Errorf("run %d missing k8s names", *w.ID)
	}
	run := JobRun{
		ID:      *w.ID,
		Status:  *w.Status,
		JobName: *w.JobName,
		PodName: *w.PodName,
	}
	// started_at and finished_at are nullable by contract.
	if w.StartedAt != nil {
		run.StartedAt = *w.StartedAt
	}
	if w.FinishedAt != nil {
		run.FinishedAt = *w.FinishedAt
	}
	return run, nil
}

type jobWire struct {
	ID          *int64      `json:"id"`
	Image       *string     `json:"image"`
	GPUProfile  *string     `json:"gpu_profile"`
	SubmittedAt *string     `json:"submitted_at"`
	CreatedByID *int64      `json:"created_by_id"`
	LatestRun   *jobRunWire `json:"latest_run"`
}

func (w jobWire) toJob() (Job, error) {
	if w.ID == nil {
		return Job{}, fmt.Errorf("job missing id")
	}
	if w.Image == nil || w.GPUProfile == nil || w.SubmittedAt == nil {
		return Job{}, fmt.Errorf("job %d missing required fields", *w.ID)
	}
	if w.CreatedByID == nil {
		return Job{}, fmt.Errorf("job %d missing created_by_id", *w.ID)
	}
	job := Job{
		ID:          *w.ID,
		Image:       *w.Image,
		GPUProfile:  *w.GPUProfile,
		SubmittedAt: *w.SubmittedAt,
		CreatedByID: *w.CreatedByID,
	}
	if w.LatestRun != nil {
		run, err := w.LatestRun.toJobRun()
		if err != nil {
			return Job{}, fmt.Errorf("job %d: %s", *w.ID, err)
		}
		job.LatestRun = &run
	}
	return job, nil
}

type registryImageWire struct {
	Image    *string `json:"image"`
	Tag      *string `json:"tag"`
	Digest   *string `json:"digest"`
	PushedAt *string `json:"pushed_at"`
}

func (w registryImageWire) toRegistryImage() (RegistryImage, error) {
	if w.Image == nil || w.Tag == nil || w.Digest == nil || w.PushedAt == nil {
		return RegistryImage{}, fmt.Errorf("image entry missing required fields")
	}
	return RegistryImage{Image: *w.Image, Tag: *w.Tag, Digest: *w.Digest, PushedAt: *w.PushedAt}, nil
}

type secretSummaryWire struct {
	Name *string `json:"name"`
}

func (w secretSummaryWire) toSecretSummary() (SecretSummary, error) {
	if w.Name == nil || *w.Name == "" {
		return SecretSummary{}, fmt.Errorf("secret missing name")
	}
	return SecretSummary{Name: *w.Name}, nil
}

type secretDetailWire struct {
	Name *string   `json:"name"`
	Keys *[]string `json:"keys"`
}

func (w secretDetailWire) toSecretDetail() (SecretDetail, error) {
	if w.Name == nil || *w.Name == "" {
		return SecretDetail{}, fmt.Errorf("secret detail missing name")
	}
	if w.Keys == nil {
		return SecretDetail{}, fmt.Errorf("secret %q missing keys", *w.Name)
	}
	return SecretDetail{Name: *w.Name, Keys: append([]string(nil), (*w.Keys)...)}, nil
}

type jobSubmissionWire struct {
	Image       string   `json:"image"`
	GPU         string   `json:"gpu"`
	Storage     int      `json:"storage"`
	SecretNames []string `json:"secret_names,omitempty"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
