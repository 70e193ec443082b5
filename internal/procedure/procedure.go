// Package procedure invokes the stored routines that own trade and
// commission state. Only allow-listed routines can be called.
package procedure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Routine names.
const (
	InitiateTrade             = "initiate_trade"
	MarkTradePaid             = "mark_trade_paid"
	ReleaseTradeFunds         = "release_trade_funds"
	RaiseTradeDispute         = "raise_trade_dispute"
	ProcessReferralCommission = "process_referral_commission"
)

var allowed = map[string]bool{
	InitiateTrade:             true,
	MarkTradePaid:             true,
	ReleaseTradeFunds:         true,
	RaiseTradeDispute:         true,
	ProcessReferralCommission: true,
}

// ErrUnknownProcedure is returned for names outside the allow-list.
var ErrUnknownProcedure = errors.New("unknown procedure")

// ProcedureError is returned when a routine reports success = false.
type ProcedureError struct {
	Name    string
	Message string
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Result is a routine's reported outcome.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Invoker calls routines over a Querier.
type Invoker struct {
	db     Querier
	logger *slog.Logger
}

// NewInvoker creates an Invoker.
func NewInvoker(db Querier, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{db: db, logger: logger}
}

// Allowed reports whether name may be called.
func Allowed(name string) bool {
	return allowed[name]
}

// Call runs the named routine with args. A routine that reports failure
// yields its Result together with a *ProcedureError.
func (i *Invoker) Call(ctx context.Context, name string, args ...any) (Result, error) {
	if !Allowed(name) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownProcedure, name)
	}

	var (
		res     Result
		message *string
	)
	err := i.db.QueryRow(ctx, statement(name, len(args)), args...).Scan(&res.Success, &message)
	if err != nil {
		return Result{}, fmt.Errorf("call %s: %w", name, err)
	}
	if message != nil {
		res.Message = *message
	}

	if !res.Success {
		i.logger.Debug("procedure reported failure", "procedure", name, "message", res.Message)
		return res, &ProcedureError{Name: name, Message: res.Message}
	}
	return res, nil
}

// statement builds "SELECT success, message FROM name($1, ..., $n)". name
// must already be allow-listed.
func statement(name string, n int) string {
	params := make([]string, n)
	for i := range params {
		params[i] = "$" + strconv.Itoa(i+1)
	}
	return "SELECT success, message FROM " + name + "(" + strings.Join(params, ", ") + ")"
}
