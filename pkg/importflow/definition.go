package importflow

import (
	"github.com/dukex/lakeflow/pkg/models"
)

// Task resources the workflow invokes.
const (
	ResourceListObjects         = "list-objects"
	ResourceFilterObjects       = "filter-objects"
	ResourceReportStatus        = "report-status"
	ResourcePullSchema          = "pull-schema"
	ResourceUpdateExternalFlow  = "update-external-flow"
	ResourcePrepareStagingTable = "prepare-staging-table"
	ResourceStartJob            = "start-job"
	ResourceDescribeJob         = "describe-job-execution"
	ResourceCleanupStaging      = "cleanup-staging"
	ResourceListEntities        = "list-entities"
	ResourceFinalizeStaging     = "finalize-staging"
	ResourceGetQueueSnapshot    = "get-queue-snapshot"
	ResourcePurgeQueue          = "purge-queue"
)

// Resources lists every task the workflow needs bound in a registry.
func Resources() []string {
	return []string{
		ResourceListObjects,
		ResourceFilterObjects,
		ResourceReportStatus,
		ResourcePullSchema,
		ResourceUpdateExternalFlow,
		ResourcePrepareStagingTable,
		ResourceStartJob,
		ResourceDescribeJob,
		ResourceCleanupStaging,
		ResourceListEntities,
		ResourceFinalizeStaging,
		ResourceGetQueueSnapshot,
		ResourcePurgeQueue,
	}
}

const executionNamePath = "$$.Execution.Name"

// NewDefinition returns the import workflow for cfg. cfg is expected to be
// valid; see Config.Validate.
func NewDefinition(cfg Config) *models.Definition {
	b := builder{cfg: cfg}

	return &models.Definition{
		Comment:        "Pulls latest schema information, updates the connector flows and ingests the data into the lake",
		StartAt:        "ListMetadataFiles1",
		TimeoutSeconds: cfg.TimeoutSeconds,
		States: map[string]*models.State{
			"ListMetadataFiles1":   b.listMetadata("FilterMetadataFiles1"),
			"FilterMetadataFiles1": b.filterMetadata("UpdateFlow"),
			"UpdateFlow": {
				Type:           models.StateTypeMap,
				Comment:        "Refresh the schema of every changed entity and push it to its flow",
				MaxConcurrency: cfg.SchemaChangeConcurrency,
				ResultPath:     "$",
				Iterator:       b.updateFlowIterator(),
				Next:           "PurgeAndRun",
			},
			"PurgeAndRun": {
				Type:       models.StateTypeParallel,
				ResultPath: "$",
				Branches: []*models.Definition{
					{
						StartAt: "PurgeDeadLetterQueue",
						States: map[string]*models.State{
							"PurgeDeadLetterQueue": b.task(ResourcePurgeQueue, map[string]any{"queueId": cfg.DeadLetterQueue}, "", true),
						},
					},
					{
						StartAt: "RunFlow",
						States: map[string]*models.State{
							"RunFlow": {
								Type:           models.StateTypeMap,
								Comment:        "Run the import job of every entity",
								MaxConcurrency: cfg.ImportConcurrency,
								ResultPath:     "$",
								Iterator:       b.runFlowIterator(),
								End:            true,
							},
						},
					},
				},
				Next: "WaitSqs",
			},
			"WaitSqs": {
				Type:    models.StateTypeWait,
				Seconds: cfg.PollSeconds,
				Next:    "GetQueueSnapshot",
			},
			"GetQueueSnapshot": withResultPath(
				b.task(ResourceGetQueueSnapshot, map[string]any{"queueId": cfg.ProcessingQueue}, "QueueDrained?", false), "$"),
			"QueueDrained?": {
				Type: models.StateTypeChoice,
				Choices: []models.ChoiceRule{
					models.And(
						models.NumericEquals("$.visible", 0),
						models.NumericEquals("$.inFlight", 0),
						models.NumericEquals("$.delayed", 0),
					).Then("GetDeadLetterQueueSnapshot"),
				},
				Default: "WaitSqs",
			},
			// Read only: a non empty dead letter queue does not change the path.
			"GetDeadLetterQueueSnapshot": withResultPath(
				b.task(ResourceGetQueueSnapshot, map[string]any{"queueId": cfg.DeadLetterQueue}, "ListMetadataFiles2", false), "$"),
			"ListMetadataFiles2":   b.listMetadata("FilterMetadataFiles2"),
			"FilterMetadataFiles2": b.filterMetadata("CleanupSQLTables"),
			"CleanupSQLTables": {
				Type:           models.StateTypeMap,
				Comment:        "Swap staging tables in and report the final job execution",
				MaxConcurrency: cfg.SchemaChangeConcurrency,
				ResultSelector: map[string]any{"schemas.$": "$"},
				ResultPath:     "$",
				Iterator:       b.cleanupIterator(),
				Next:           "ListEntities",
			},
			"ListEntities": {
				Type:       models.StateTypeTask,
				Resource:   ResourceListEntities,
				Parameters: map[string]any{},
				ResultPath: "$.result",
				OutputPath: "$.result.entities",
				Retry:      []models.RetryPolicy{cfg.RetryPolicy()},
				Next:       "FinalizeSQL",
			},
			"FinalizeSQL": b.task(ResourceFinalizeStaging, map[string]any{"entities.$": "$"}, "", true),
		},
	}
}

type builder struct {
	cfg Config
}

func (b builder) task(resource string, parameters map[string]any, next string, end bool, extraKinds ...models.ErrorKind) *models.State {
	return &models.State{
		Type:       models.StateTypeTask,
		Resource:   resource,
		Parameters: parameters,
		Retry:      []models.RetryPolicy{b.cfg.RetryPolicy(extraKinds...)},
		Next:       next,
		End:        end,
	}
}

func withResultPath(state *models.State, path string) *models.State {
	state.ResultPath = path

	return state
}

func (b builder) listMetadata(next string) *models.State {
	state := b.task(ResourceListObjects, map[string]any{
		"location": b.cfg.MetadataLocation,
		"prefix":   b.cfg.MetadataPrefix,
	}, next, false)
	state.ResultPath = "$"
	state.OutputPath = "$.contents"

	return state
}

func (b builder) filterMetadata(next string) *models.State {
	state := b.task(ResourceFilterObjects, map[string]any{
		"objects.$":      "$",
		"connectionName": b.cfg.ConnectionName,
	}, next, false)
	state.ResultPath = "$"

	return state
}

func (b builder) statusReport(stage models.ImportStage, parameters map[string]any, next string) *models.State {
	parameters["executionId.$"] = executionNamePath
	parameters["importStage"] = string(stage)

	state := b.task(ResourceReportStatus, parameters, next, next == "")
	state.ResultPath = "$.lastStatus"

	return state
}

func (b builder) updateFlowIterator() *models.Definition {
	updateFlowSchema := b.task(ResourceUpdateExternalFlow, map[string]any{
		"entity.$":    "$.entity",
		"flowName.$":  "$.flowName",
		"schemaRef.$": "$.schema.schemaRef",
	}, "", true, models.ErrorKindConnectorServerError)
	updateFlowSchema.ResultSelector = map[string]any{
		"flowName.$": "$.flowName",
		"entity.$":   "$.entity",
	}
	updateFlowSchema.ResultPath = "$"

	pullNewSchema := b.task(ResourcePullSchema, map[string]any{
		"entity.$": "$.entity",
		"key.$":    "$.key",
	}, "UpdateFlowSchema", false, models.ErrorKindConnectorServerError)
	pullNewSchema.ResultPath = "$.schema"

	return &models.Definition{
		StartAt: "StatusReportPrepare",
		States: map[string]*models.State{
			"StatusReportPrepare": b.statusReport(models.ImportStagePrepare, map[string]any{"object.$": "$"}, "PullNewSchema"),
			"PullNewSchema":       pullNewSchema,
			"UpdateFlowSchema":    updateFlowSchema,
		},
	}
}

func (b builder) runFlowIterator() *models.Definition {
	setupSQL := b.task(ResourcePrepareStagingTable, map[string]any{
		"entity.$":   "$.entity",
		"flowName.$": "$.flowName",
	}, "StartFlow", false)
	setupSQL.ResultPath = "$.staging"

	startFlow := b.task(ResourceStartJob, map[string]any{"flowName.$": "$.flowName"}, "WaitForFlowStart", false)
	startFlow.ResultPath = "$.job"

	describe := b.task(ResourceDescribeJob, map[string]any{"flowName.$": "$.flowName"}, "FlowDone?", false)
	describe.ResultSelector = map[string]any{"flowStatus.$": "$.status"}
	describe.ResultPath = "$.result"

	terminal := make([]models.ChoiceRule, 0, len(b.cfg.TerminalJobStatuses))
	for _, status := range b.cfg.TerminalJobStatuses {
		terminal = append(terminal, models.StringEquals("$.result.flowStatus", status))
	}

	return &models.Definition{
		StartAt: "StatusReportBegin",
		States: map[string]*models.State{
			"StatusReportBegin": b.statusReport(models.ImportStageBegin, map[string]any{"object.$": "$"}, "SetupSQL"),
			"SetupSQL":          setupSQL,
			"StartFlow":         startFlow,
			// The first describe must not race the job start.
			"WaitForFlowStart": {
				Type:    models.StateTypeWait,
				Seconds: b.cfg.PollSeconds,
				Next:    "DescribeFlowExecutionRecords",
			},
			"DescribeFlowExecutionRecords": describe,
			"FlowDone?": {
				Type:    models.StateTypeChoice,
				Choices: []models.ChoiceRule{models.Or(terminal...).Then("StatusReportImport")},
				Default: "WaitForFlowCompletion",
			},
			"WaitForFlowCompletion": {
				Type:    models.StateTypeWait,
				Seconds: b.cfg.PollSeconds,
				Next:    "DescribeFlowExecutionRecords",
			},
			"StatusReportImport": b.statusReport(models.ImportStageImport, map[string]any{
				"entity.$":     "$.entity",
				"flowName.$":   "$.flowName",
				"flowStatus.$": "$.result.flowStatus",
			}, ""),
		},
	}
}

func (b builder) cleanupIterator() *models.Definition {
	cleanupSQL := b.task(ResourceCleanupStaging, map[string]any{
		"entity.$": "$.entity",
		"key.$":    "$.key",
	}, "DescribeFlowExecutionRecordsFinal", false)
	cleanupSQL.ResultPath = "$.cleanup"

	describe := b.task(ResourceDescribeJob, map[string]any{"flowName.$": "$.flowName"}, "StatusReportCleanup", false)
	describe.ResultSelector = map[string]any{"execution.$": "$.record"}
	describe.ResultPath = "$.flow"

	return &models.Definition{
		StartAt: "CleanupSQL",
		States: map[string]*models.State{
			"CleanupSQL":                        cleanupSQL,
			"DescribeFlowExecutionRecordsFinal": describe,
			"StatusReportCleanup": b.statusReport(models.ImportStageCleanup, map[string]any{
				"entity.$":   "$.entity",
				"flowName.$": "$.flowName",
				"flow.$":     "$.flow.execution",
			}, ""),
		},
	}
}
