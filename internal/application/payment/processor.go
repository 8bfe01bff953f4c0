package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/payfacade/app/internal/domain/payment"
	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	processorService = "payment-processor"
	spanPrefix       = "UC."
	peerGateway      = "payment_gateway"

	useCaseProcess = "payment.process"
	useCaseRefund  = "payment.refund"
	useCaseStatus  = "payment.status"

	outcomeSuccess  = "success"
	outcomeDeclined = "declined"
	outcomeFailure  = "gateway_failure"
	outcomeInvalid  = "invalid_input"
	outcomeError    = "error"

	msgUserRequired        = "User id is required."
	msgNegativePayment     = "Negative payment."
	msgTransactionRequired = "Transaction id is required."

	statusErrorPrefix = "Error getting payment status: "
)

// operation describes one of the two money-moving calls. They differ only in wording,
// the gateway endpoint and which failure kinds are absorbed into a FAILED result.
type operation struct {
	useCase  string
	span     string
	endpoint string
	noun     string
	catches  []error
}

var (
	chargeOp = operation{
		useCase:  useCaseProcess,
		span:     "ProcessPayment",
		endpoint: "charge",
		noun:     "Payment",
		catches:  []error{domain.ErrNetworkFailure, domain.ErrPaymentRejected},
	}
	refundOp = operation{
		useCase:  useCaseRefund,
		span:     "RefundPayment",
		endpoint: "refund",
		noun:     "Refund",
		catches:  []error{domain.ErrNetworkFailure, domain.ErrRefundRejected},
	}
)

func (op operation) absorbs(err error) bool {
	for _, target := range op.catches {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Processor is the single entry point for payments, refunds and status inquiries.
// Every classified attempt writes exactly one line to the outcome log; a successful
// status inquiry writes none. Processor keeps no transaction state and never retries.
type Processor struct {
	gateway  domain.Gateway
	outcomes outcome.Logger
	tracer   observability.Tracer
	log      observability.Logger

	reqCounter observability.Counter   // usecase_requests_total{use_case,outcome}
	durHist    observability.Histogram // usecase_duration_seconds{use_case}
	extCounter observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHist    observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewProcessor(gateway domain.Gateway, outcomes outcome.Logger, tel observability.Observability) *Processor {
	if outcomes == nil {
		outcomes = outcome.Discard()
	}
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Processor{
		gateway:    gateway,
		outcomes:   outcomes,
		tracer:     tel.Tracer(),
		log:        tel.Logger().With(observability.F("service", processorService)),
		reqCounter: metrics.Counter(observability.MUsecaseRequests),
		durHist:    metrics.Histogram(observability.MUsecaseDuration),
		extCounter: metrics.Counter(observability.MExternalRequests),
		extHist:    metrics.Histogram(observability.MExternalRequestDuration),
	}
}

// ProcessPayment charges amount to userID.
//
// Network failures and payment rejections come back as a FAILED result with a nil error.
// A blank user or negative amount is refused before the gateway is contacted and
// returns an error matching domain.ErrInvalidInput. Anything else the gateway raises
// is returned wrapped.
func (p *Processor) ProcessPayment(ctx context.Context, userID string, amount int64) (domain.TransactionResult, error) {
	var inputErr error
	switch {
	case amount < 0:
		inputErr = domain.InvalidInput("amount", msgNegativePayment)
	case strings.TrimSpace(userID) == "":
		inputErr = domain.InvalidInput("user_id", msgUserRequired)
	}

	return p.transact(ctx, chargeOp, inputErr,
		func(ctx context.Context) (domain.TransactionResult, error) {
			return p.gateway.Charge(ctx, userID, amount)
		},
		[]attribute.KeyValue{
			attribute.String("payment.user_id", userID),
			attribute.Int64("payment.amount", amount),
		},
		observability.F("user_id", userID),
		observability.F("amount", amount),
	)
}

// RefundPayment reverses transactionID. Network failures and refund rejections come
// back as a FAILED result with a nil error.
func (p *Processor) RefundPayment(ctx context.Context, transactionID string) (domain.TransactionResult, error) {
	var inputErr error
	if strings.TrimSpace(transactionID) == "" {
		inputErr = domain.InvalidInput("transaction_id", msgTransactionRequired)
	}

	return p.transact(ctx, refundOp, inputErr,
		func(ctx context.Context) (domain.TransactionResult, error) {
			return p.gateway.Refund(ctx, transactionID)
		},
		[]attribute.KeyValue{attribute.String("payment.transaction_id", transactionID)},
		observability.F("transaction_id", transactionID),
	)
}

// GetPaymentStatus reports the gateway's view of transactionID. A network failure
// yields StatusFailed with a nil error; a successful lookup is not written to the outcome log.
func (p *Processor) GetPaymentStatus(ctx context.Context, transactionID string) (status domain.TransactionStatus, err error) {
	c := p.begin(ctx, useCaseStatus, "GetPaymentStatus",
		[]attribute.KeyValue{attribute.String("payment.transaction_id", transactionID)},
		observability.F("transaction_id", transactionID),
	)
	status = domain.StatusFailed
	defer func() {
		c.span.SetAttributes(attribute.String("payment.status", string(status)))
		p.finish(c, err)
	}()

	if strings.TrimSpace(transactionID) == "" {
		p.outcomes.Error(statusErrorPrefix + msgTransactionRequired)
		c.outcome, c.status, c.reason = outcomeInvalid, "INVALID_INPUT", msgTransactionRequired
		return domain.StatusFailed, fmt.Errorf("%s: %w", useCaseStatus,
			domain.InvalidInput("transaction_id", msgTransactionRequired))
	}

	got, err := observeGateway(p, c.ctx, "status", func(ctx context.Context) (domain.TransactionStatus, error) {
		return p.gateway.GetStatus(ctx, transactionID)
	})
	if err != nil {
		if msg, ok := domain.FailureMessage(err); ok && errors.Is(err, domain.ErrNetworkFailure) {
			p.outcomes.Error(statusErrorPrefix + msg)
			c.outcome, c.status, c.reason = outcomeFailure, failureStatus(err), msg
			return domain.StatusFailed, nil
		}
		c.outcome, c.status = outcomeError, "UNCLASSIFIED_FAILURE"
		return domain.StatusFailed, fmt.Errorf("%s: %w", useCaseStatus, err)
	}
	if !got.Valid() {
		c.outcome, c.status = outcomeError, "MALFORMED_RESULT"
		return domain.StatusFailed, fmt.Errorf("%s: %w: %q", useCaseStatus, domain.ErrMalformedResult, got)
	}

	c.status = string(got)
	return got, nil
}

func (p *Processor) transact(
	ctx context.Context,
	op operation,
	inputErr error,
	invoke func(context.Context) (domain.TransactionResult, error),
	attrs []attribute.KeyValue,
	fields ...observability.Field,
) (res domain.TransactionResult, err error) {
	c := p.begin(ctx, op.useCase, op.span, attrs, fields...)
	defer func() {
		c.span.SetAttributes(
			attribute.Bool("payment.success", res.Success),
			attribute.String("payment.status", string(res.Status)),
		)
		if res.TransactionID != "" {
			c.fields = append(c.fields, observability.F("result_transaction_id", res.TransactionID))
		}
		p.finish(c, err)
	}()

	if inputErr != nil {
		var ie *domain.InputError
		reason := inputErr.Error()
		if errors.As(inputErr, &ie) {
			reason = ie.Message
		}
		p.outcomes.Error(op.noun + " processing error: " + reason)
		c.outcome, c.status, c.reason = outcomeInvalid, "INVALID_INPUT", reason
		return domain.Failed(reason), fmt.Errorf("%s: %w", op.useCase, inputErr)
	}

	res, err = observeGateway(p, c.ctx, op.endpoint, invoke)
	if err != nil {
		if msg, ok := domain.FailureMessage(err); ok && op.absorbs(err) {
			p.outcomes.Error(op.noun + " processing error: " + msg)
			c.outcome, c.status, c.reason = outcomeFailure, failureStatus(err), msg
			return domain.Failed(msg), nil
		}
		c.outcome, c.status = outcomeError, "UNCLASSIFIED_FAILURE"
		return domain.Failed(err.Error()), fmt.Errorf("%s: %w", op.useCase, err)
	}
	if verr := res.Validate(); verr != nil {
		c.outcome, c.status = outcomeError, "MALFORMED_RESULT"
		return domain.Failed(verr.Error()), fmt.Errorf("%s: %w", op.useCase, verr)
	}

	if res.Success {
		p.outcomes.Info(op.noun + " successful: " + res.TransactionID)
		c.status = string(res.Status)
		return res, nil
	}

	p.outcomes.Error(op.noun + " failed: " + res.Message)
	c.outcome, c.status, c.reason = outcomeDeclined, "DECLINED", res.Message
	return res, nil
}

// call carries the per-invocation telemetry state closed out by finish.
type call struct {
	ctx     context.Context
	span    trace.Span
	logger  observability.Logger
	start   time.Time
	useCase string
	outcome string
	status  string
	reason  string
	fields  []observability.Field
}

func (p *Processor) begin(ctx context.Context, useCase, spanName string, attrs []attribute.KeyValue, fields ...observability.Field) *call {
	logger := logctx.FromOr(ctx, p.log).With(
		append([]observability.Field{observability.F("use_case", useCase)}, fields...)...,
	)
	ctx, span := p.tracer.Start(ctx, spanPrefix+spanName,
		append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)...,
	)
	return &call{
		ctx:     logctx.With(ctx, logger),
		span:    span,
		logger:  logger,
		start:   time.Now(),
		useCase: useCase,
		outcome: outcomeSuccess,
		status:  "OK",
	}
}

func (p *Processor) finish(c *call, err error) {
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, c.status)
	} else {
		c.span.SetStatus(codes.Ok, c.status)
	}
	c.span.End()

	latency := time.Since(c.start).Seconds()
	p.reqCounter.Add(1,
		observability.L("use_case", c.useCase),
		observability.L("outcome", c.outcome),
	)
	p.durHist.Observe(latency,
		observability.L("use_case", c.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", latency),
	}, c.fields...)
	if sc := trace.SpanContextFromContext(c.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if c.reason != "" {
		fields = append(fields, observability.F("failure_reason", c.reason))
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	c.logger.Info("use_case_done", fields...)
}

// observeGateway times one gateway call and counts it by failure kind.
func observeGateway[T any](p *Processor, ctx context.Context, endpoint string, invoke func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := invoke(ctx)

	p.extCounter.Add(1,
		observability.L("peer", peerGateway),
		observability.L("endpoint", endpoint),
		observability.L("outcome", gatewayOutcome(err)),
	)
	p.extHist.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerGateway),
		observability.L("endpoint", endpoint),
	)
	return v, err
}

func gatewayOutcome(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	var f *domain.Failure
	if errors.As(err, &f) {
		return string(f.Kind)
	}
	return outcomeError
}

func failureStatus(err error) string {
	return strings.ToUpper(gatewayOutcome(err))
}
