// Package importflow builds the bulk-import workflow: refresh connector
// schemas, run one import job per entity, wait for the processing queue to
// drain, then swap and finalize the staging tables.
package importflow

import (
	"fmt"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConcurrency    = 5
	DefaultTimeoutSeconds = 82800
	DefaultPollSeconds    = 60
	DefaultMetadataPrefix = "schemas/"
)

// DefaultTerminalJobStatuses are the job statuses that end job polling.
var DefaultTerminalJobStatuses = []string{"Successful", "Error"}

// RetryConfig is the retry policy applied to every task of the workflow.
type RetryConfig struct {
	IntervalSeconds float64 `json:"intervalSeconds" yaml:"intervalSeconds" validate:"gt=0"`
	MaxAttempts     int     `json:"maxAttempts"     yaml:"maxAttempts"     validate:"min=1"`
	BackoffRate     float64 `json:"backoffRate"     yaml:"backoffRate"     validate:"gte=1"`
}

// Config is supplied at run start and shapes the generated definition.
type Config struct {
	SchemaChangeConcurrency int         `json:"schemaChangeConcurrency" yaml:"schemaChangeConcurrency" validate:"min=1,max=30"`
	ImportConcurrency       int         `json:"importConcurrency"       yaml:"importConcurrency"       validate:"min=1,max=30"`
	TimeoutSeconds          int         `json:"timeoutSeconds"          yaml:"timeoutSeconds"          validate:"min=1"`
	PollSeconds             float64     `json:"pollSeconds"             yaml:"pollSeconds"             validate:"gt=0"`
	Retry                   RetryConfig `json:"retry"                   yaml:"retry"`

	MetadataLocation string `json:"metadataLocation" yaml:"metadataLocation" validate:"required"`
	MetadataPrefix   string `json:"metadataPrefix"   yaml:"metadataPrefix"`
	ConnectionName   string `json:"connectionName"   yaml:"connectionName"   validate:"required"`
	ProcessingQueue  string `json:"processingQueue"  yaml:"processingQueue"  validate:"required"`
	DeadLetterQueue  string `json:"deadLetterQueue"  yaml:"deadLetterQueue"  validate:"required,nefield=ProcessingQueue"`

	TerminalJobStatuses []string `json:"terminalJobStatuses" yaml:"terminalJobStatuses" validate:"min=1,dive,required"`
}

func DefaultConfig() Config {
	return Config{
		SchemaChangeConcurrency: DefaultConcurrency,
		ImportConcurrency:       DefaultConcurrency,
		TimeoutSeconds:          DefaultTimeoutSeconds,
		PollSeconds:             DefaultPollSeconds,
		Retry: RetryConfig{
			IntervalSeconds: models.DefaultRetryIntervalSeconds,
			MaxAttempts:     models.DefaultRetryMaxAttempts,
			BackoffRate:     models.DefaultRetryBackoffRate,
		},
		MetadataLocation:    "data/metadata",
		MetadataPrefix:      DefaultMetadataPrefix,
		ConnectionName:      "salesforce",
		ProcessingQueue:     "lakeflow-import",
		DeadLetterQueue:     "lakeflow-import-dlq",
		TerminalJobStatuses: append([]string(nil), DefaultTerminalJobStatuses...),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("invalid import workflow config: %w", err)
	}

	return nil
}

// RetryPolicy returns the configured policy over the default retryable kinds
// plus extra.
func (c Config) RetryPolicy(extra ...models.ErrorKind) models.RetryPolicy {
	policy := models.DefaultRetryPolicy(extra...)
	policy.IntervalSeconds = c.Retry.IntervalSeconds
	policy.MaxAttempts = c.Retry.MaxAttempts
	policy.BackoffRate = c.Retry.BackoffRate

	return policy
}
