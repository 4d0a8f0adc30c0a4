package bizerror

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	CodeBadParam            = "common.bad_param"
	CodeNotFound            = "common.record_not_found"
	CodeConflict            = "common.conflict"
	CodeInternalServerError = "common.internal_server_error"
	CodeUnauthenticated     = "common.unauthenticated"

	CodeWorkflowInvalid    = "workflow.invalid_definition"
	CodeInvalidTarget      = "protocol.invalid_target"
	CodeIllegalTransition  = "protocol.illegal_transition"
	CodeTerminalState      = "protocol.terminal_state"
	CodeReopenDisabled     = "protocol.reopen_disabled"
	CodeNotConcluded       = "protocol.not_concluded"
	CodePriorityOutOfRange = "protocol.priority_out_of_range"
	CodeTooSoon            = "escalation.too_soon"
	CodeTerminalProtocol   = "escalation.terminal_protocol"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("concurrent modification")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrReopenDisabled  = errors.New("reopen is disabled")
	ErrNotConcluded    = errors.New("protocol is not concluded")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Status  int
	Code    string
	Message string

	Data  interface{}
	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return CodeBadParam
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: CodeBadParam, Message: e.Error(), Data: nil}
}

// ErrResourceNotFound is an unknown module, protocol or stage.
type ErrResourceNotFound struct {
	Resource string
	Key      string
}

func NotFound(resource, key string) error {
	return &ErrResourceNotFound{Resource: resource, Key: key}
}

func (e *ErrResourceNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}
func (e *ErrResourceNotFound) Is(target error) bool {
	return target == ErrNotFound
}
func (e *ErrResourceNotFound) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusNotFound, Code: CodeNotFound, Message: e.Error(),
		Data: map[string]string{"resource": e.Resource, "key": e.Key}}
}

// ErrWorkflowInvalid is a malformed workflow definition, fatal at load time.
type ErrWorkflowInvalid struct {
	ModuleType string
	Problems   []string
}

func (e *ErrWorkflowInvalid) Error() string {
	return fmt.Sprintf("workflow %s is invalid: %s", e.ModuleType, strings.Join(e.Problems, "; "))
}
func (e *ErrWorkflowInvalid) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusUnprocessableEntity, Code: CodeWorkflowInvalid, Message: e.Error(), Data: e.Problems}
}

type ErrInvalidTarget struct {
	ModuleType  string
	TargetStage string
}

func (e *ErrInvalidTarget) Error() string {
	return fmt.Sprintf("stage %s does not exist in workflow %s", e.TargetStage, e.ModuleType)
}
func (e *ErrInvalidTarget) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusUnprocessableEntity, Code: CodeInvalidTarget, Message: e.Error(),
		Data: map[string]string{"targetStage": e.TargetStage}}
}

type ErrIllegalTransition struct {
	FromStage string
	ToStage   string
	Allowed   []string
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("transition from %s to %s is not allowed", e.FromStage, e.ToStage)
}
func (e *ErrIllegalTransition) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusConflict, Code: CodeIllegalTransition, Message: e.Error(),
		Data: map[string]interface{}{"fromStage": e.FromStage, "toStage": e.ToStage, "allowedNextStages": e.Allowed}}
}

type ErrTerminalState struct {
	Stage string
}

func (e *ErrTerminalState) Error() string {
	return fmt.Sprintf("stage %s is terminal, no transition is possible", e.Stage)
}
func (e *ErrTerminalState) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusConflict, Code: CodeTerminalState, Message: e.Error(),
		Data: map[string]string{"stage": e.Stage}}
}

type ErrTerminalProtocol struct {
	Stage string
}

func (e *ErrTerminalProtocol) Error() string {
	return fmt.Sprintf("protocol is closed at stage %s, escalation is not possible", e.Stage)
}
func (e *ErrTerminalProtocol) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusConflict, Code: CodeTerminalProtocol, Message: e.Error(),
		Data: map[string]string{"stage": e.Stage}}
}

type ErrTooSoon struct {
	LastRequestedAt time.Time
	RetryAfter      time.Duration
}

func (e *ErrTooSoon) Error() string {
	return fmt.Sprintf("update was already requested at %s, retry after %s",
		e.LastRequestedAt.Format(time.RFC3339), e.RetryAfter.Round(time.Second))
}
func (e *ErrTooSoon) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}
func (e *ErrTooSoon) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusTooManyRequests, Code: CodeTooSoon, Message: e.Error(),
		Data: map[string]interface{}{"lastRequestedAt": e.LastRequestedAt, "retryAfterSeconds": e.RetryAfterSeconds()}}
}

type ErrPriorityOutOfRange struct {
	Priority int
}

func (e *ErrPriorityOutOfRange) Error() string {
	return fmt.Sprintf("priority %d is out of range 1..5", e.Priority)
}
func (e *ErrPriorityOutOfRange) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusBadRequest, Code: CodePriorityOutOfRange, Message: e.Error(), Data: e.Priority}
}

// ErrInternal marks an infrastructure failure, distinct from the domain taxonomy.
type ErrInternal struct {
	Cause error
}

func (e *ErrInternal) Error() string {
	return "internal error: " + e.Cause.Error()
}
func (e *ErrInternal) Unwrap() error {
	return e.Cause
}
func (e *ErrInternal) Respond() *BizErrorDetail {
	return &BizErrorDetail{Status: http.StatusInternalServerError, Code: CodeInternalServerError, Message: e.Error(), Cause: e.Cause}
}

// Internal wraps err as ErrInternal unless it already belongs to the domain taxonomy.
func Internal(err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	return &ErrInternal{Cause: err}
}

func isClassified(err error) bool {
	var biz BizError
	if errors.As(err, &biz) {
		return true
	}
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrReopenDisabled) || errors.Is(err, ErrNotConcluded)
}
