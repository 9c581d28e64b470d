package models

import "time"

// TransformationJob represents one Java modernization job submitted to the
// backend transformation service.
type TransformationJob struct {
	ID               string // assigned by the backend after upload+start
	SessionID        string // local session identifier (uuid)
	ProjectPath      string
	ProjectName      string
	BuildSystem      BuildSystem
	SourceJDKVersion JDKVersion
	TargetJDKVersion JDKVersion
	JavaHome         string // optional JAVA_HOME override
	Status           TransformationStatus
	PolledStatus     TransformationStatus // last status observed by the poll loop
	FailureReason    string
	FailureCategory  FailureCategory
	BuildLogPath     string
	PayloadPath      string // packaged archive awaiting upload
	ResultPath       string // downloaded result archive
	RequestIDTrail   []string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
}

// BuildSystem identifies the project's build tool
type BuildSystem string

const (
	BuildSystemMaven  BuildSystem = "Maven"
	BuildSystemGradle BuildSystem = "Gradle"
)

// TransformationStatus is the combined client+backend job status vocabulary.
// The NotStarted/Building/Uploading/WaitingUserInput values exist only on the
// client; the rest come back from the transformation service.
type TransformationStatus string

const (
	StatusNotStarted       TransformationStatus = "NOT_STARTED"
	StatusBuilding         TransformationStatus = "BUILDING"
	StatusUploading        TransformationStatus = "UPLOADING"
	StatusWaitingUserInput TransformationStatus = "WAITING_USER_INPUT"

	StatusCreated            TransformationStatus = "CREATED"
	StatusAccepted           TransformationStatus = "ACCEPTED"
	StatusStarted            TransformationStatus = "STARTED"
	StatusPreparing          TransformationStatus = "PREPARING"
	StatusPrepared           TransformationStatus = "PREPARED"
	StatusPlanning           TransformationStatus = "PLANNING"
	StatusPlanned            TransformationStatus = "PLANNED"
	StatusTransforming       TransformationStatus = "TRANSFORMING"
	StatusTransformed        TransformationStatus = "TRANSFORMED"
	StatusPaused             TransformationStatus = "PAUSED"
	StatusResumed            TransformationStatus = "RESUMED"
	StatusStopping           TransformationStatus = "STOPPING"
	StatusStopped            TransformationStatus = "STOPPED"
	StatusCompleted          TransformationStatus = "COMPLETED"
	StatusPartiallyCompleted TransformationStatus = "PARTIALLY_COMPLETED"
	StatusFailed             TransformationStatus = "FAILED"
)

// PausedStates are backend statuses that require explicit user or client
// action before polling can continue.
var PausedStates = map[TransformationStatus]bool{
	StatusPaused: true,
}

// FailureStates are backend statuses the poll loop treats as job-stopped.
var FailureStates = map[TransformationStatus]bool{
	StatusFailed:   true,
	StatusStopping: true,
	StatusStopped:  true,
}

// TerminalStates are statuses after which the backend reports no further
// progress.
var TerminalStates = map[TransformationStatus]bool{
	StatusCompleted:          true,
	StatusPartiallyCompleted: true,
	StatusStopped:            true,
	StatusFailed:             true,
}

// PlanAvailableStates are statuses at which the transformation plan can be
// fetched and a pending client action may be attached to a plan step.
var PlanAvailableStates = map[TransformationStatus]bool{
	StatusPlanned:      true,
	StatusTransforming: true,
	StatusTransformed:  true,
	StatusPaused:       true,
}

// IsTerminal reports whether s is a terminal backend status.
func (s TransformationStatus) IsTerminal() bool { return TerminalStates[s] }

// CandidateProject is a workspace folder recognized as a transformable Java
// project. Immutable after creation.
type CandidateProject struct {
	Name       string
	Path       string
	JDKVersion JDKVersion
}

// JDKVersion is a detected or requested JDK major version.
type JDKVersion string

const (
	JDK8           JDKVersion = "JDK_8"
	JDK11          JDKVersion = "JDK_11"
	JDK17          JDKVersion = "JDK_17"
	JDK21          JDKVersion = "JDK_21"
	JDKUnsupported JDKVersion = "UNSUPPORTED"
)

// classFileMajors maps the class-file "major version" field reported by javap
// to a JDK version. Unknown majors map to JDKUnsupported.
var classFileMajors = map[int]JDKVersion{
	52: JDK8,
	55: JDK11,
	61: JDK17,
	65: JDK21,
}

// JDKVersionFromClassFileMajor maps a bytecode major version to a JDKVersion.
func JDKVersionFromClassFileMajor(major int) JDKVersion {
	if v, ok := classFileMajors[major]; ok {
		return v
	}
	return JDKUnsupported
}

// ConversationState is the chat-tab state owned by the conversation
// controller. The orchestrator drives transitions through callbacks; at most
// one non-idle state is active per session.
type ConversationState string

const (
	ConversationIdle             ConversationState = "IDLE"
	ConversationCompiling        ConversationState = "COMPILING"
	ConversationJobSubmitted     ConversationState = "JOB_SUBMITTED"
	ConversationWaitingHILInput  ConversationState = "WAITING_FOR_HIL_INPUT"
	ConversationPromptJavaHome   ConversationState = "PROMPT_JAVA_HOME"
	ConversationPromptJavaTarget ConversationState = "PROMPT_JAVA_TARGET"
)

// FailureCategory is the best-effort classification of a free-text backend
// failure reason. It is heuristic and never authoritative.
type FailureCategory string

const (
	FailureCategoryNone         FailureCategory = ""
	FailureCategoryMonthlyLimit FailureCategory = "monthly_loc_limit"
	FailureCategoryLinesOfCode  FailureCategory = "loc_limit"
	FailureCategoryGeneric      FailureCategory = "generic"
)
