package intent

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-lending-go/lending/core"
	"github.com/AntonStoeckl/library-lending-go/lending/engine"
	"github.com/AntonStoeckl/library-lending-go/lending/shell"
)

const (
	MsgNotUnderstood   = "Sorry, I couldn't understand your request."
	MsgNothingToReturn = "You have no books to return."
	MsgWhichToReturn   = "Which book do you want to return?\n"

	LogMsgClassifierFailed = "intent classification failed"
)

var (
	// ErrNilService is returned when a Router is created without a lending service.
	ErrNilService = errors.New("lending service must not be nil")

	// ErrNilClassifier is returned when a Router is created without a classifier.
	ErrNilClassifier = errors.New("classifier must not be nil")
)

// Reply is the outcome of a routed request. Exactly one of the result fields is set, except
// for Unknown and for a return request of a student without loans, which only carry Message.
type Reply struct {
	Intent  Intent
	Message string

	Borrow         *engine.BorrowResult
	ReturnChoices  *engine.ActiveLoans
	Status         *engine.StudentStatus
	Recommendation *engine.Recommendation
	Available      *engine.AvailableBooks
	Search         *engine.SearchResult
	Check          *engine.AvailabilityCheck
	Overdue        *engine.OverdueReport
}

// Router dispatches classified requests to the lending service.
type Router struct {
	service          engine.Service
	classifier       Classifier
	logger           shell.Logger
	contextualLogger shell.ContextualLogger
}

// RouterOption defines a functional option for configuring Router.
type RouterOption func(*Router)

// WithLogger sets the logger for classifier failures.
func WithLogger(logger shell.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithContextualLogger sets the contextual logger for classifier failures.
func WithContextualLogger(logger shell.ContextualLogger) RouterOption {
	return func(r *Router) {
		r.contextualLogger = logger
	}
}

// NewRouter creates a Router.
func NewRouter(service engine.Service, classifier Classifier, options ...RouterOption) (*Router, error) {
	if service == nil {
		return nil, ErrNilService
	}

	if classifier == nil {
		return nil, ErrNilClassifier
	}

	r := &Router{service: service, classifier: classifier}
	for _, option := range options {
		option(r)
	}

	return r, nil
}

// Route classifies text and runs the matching operation for studentID.
// A return request does not return anything; it answers with the active loans to choose from.
// A classifier failure is logged and treated as Unknown. Failures of the dispatched operation
// are returned unchanged.
func (r *Router) Route(ctx context.Context, studentID core.StudentIDString, text string) (Reply, error) {
	if text == "" || studentID == "" {
		return Reply{}, core.Validation("text and student_id required")
	}

	resolution, err := r.classifier.Resolve(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{}, ctxErr
		}

		shell.LogWarn(ctx, r.logger, r.contextualLogger, LogMsgClassifierFailed, shell.LogAttrError, err.Error())
		resolution = UnknownResolution()
	}

	reply := Reply{Intent: resolution.Intent}

	switch resolution.Intent {
	case Borrow:
		result, err := r.service.Borrow(ctx, studentID, resolution.Title)
		if err != nil {
			return Reply{}, err
		}

		reply.Borrow, reply.Message = &result, result.Message

	case Return:
		loans, err := r.service.ListActiveLoans(ctx, studentID)
		if err != nil {
			return Reply{}, err
		}

		if loans.Count() == 0 {
			reply.Message = MsgNothingToReturn
			break
		}

		reply.ReturnChoices, reply.Message = &loans, MsgWhichToReturn+loans.Summary

	case Status:
		status, err := r.service.Status(ctx, studentID)
		if err != nil {
			return Reply{}, err
		}

		reply.Status, reply.Message = &status, status.Summary

	case Recommend:
		recommendation, err := r.service.Recommend(ctx, resolution.Subject)
		if err != nil {
			return Reply{}, err
		}

		reply.Recommendation, reply.Message = &recommendation, recommendation.Message

	case List:
		available, err := r.service.AvailableBooks(ctx)
		if err != nil {
			return Reply{}, err
		}

		reply.Available = &available

	case Search:
		result, err := r.service.Search(ctx, resolution.Subject, resolution.Tag)
		if err != nil {
			return Reply{}, err
		}

		reply.Search = &result

	case Check:
		check, err := r.service.Check(ctx, resolution.Subject)
		if err != nil {
			return Reply{}, err
		}

		reply.Check = &check

	case Overdue:
		report, err := r.service.Overdue(ctx, studentID)
		if err != nil {
			return Reply{}, err
		}

		reply.Overdue = &report

	default:
		reply.Intent = Unknown
		reply.Message = MsgNotUnderstood
	}

	return reply, nil
}
