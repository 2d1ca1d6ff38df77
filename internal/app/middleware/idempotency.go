package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"staybook/internal/app/commands"
)

// IdempotentCommand opts a command into replay. ResultPrototype returns a
// fresh value of the handler's result type to decode a stored payload into.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key        string
	Payload    []byte
	Error      string
	OccurredAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONResultCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

// ReplayableErrors lists the outcomes that are final for a given request and
// may be replayed. Anything else (store outages, cancelled contexts, lock
// timeouts) is not recorded so the client can retry with the same key.
type ReplayableErrors []error

func (r ReplayableErrors) match(err error) (error, bool) {
	for _, target := range r {
		if errors.Is(err, target) {
			return target, true
		}
	}
	return nil, false
}

func (r ReplayableErrors) byMessage(msg string) error {
	for _, target := range r {
		if target.Error() == msg {
			return target
		}
	}
	return errors.New(msg)
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the recorded outcome of a command whose key was seen
// before. Keys are scoped by command key so two operations never share one.
// The outcome has already committed when it is recorded, so a failed write
// of the record is logged and the outcome still returned.
func Idempotency(store IdempotencyStore, codec ResultCodec, replayable ReplayableErrors, logger *slog.Logger) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if codec == nil {
		codec = JSONResultCodec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := idempotencyGuard{store: store, codec: codec, replayable: replayable, logger: logger}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return g.replay(rec, idCmd.ResultPrototype())
			}
			result, err := next.Dispatch(ctx, cmd)
			return g.remember(ctx, key, result, err)
		})
	}
}

type idempotencyGuard struct {
	store      IdempotencyStore
	codec      ResultCodec
	replayable ReplayableErrors
	logger     *slog.Logger
}

func (g idempotencyGuard) replay(rec IdempotencyRecord, proto any) (any, error) {
	if rec.Error != "" {
		return nil, g.replayable.byMessage(rec.Error)
	}
	if proto == nil {
		return nil, errMissingPrototype
	}
	if err := g.codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	// Pointer prototypes are returned as-is so callers see the handler's type.
	if rv := reflect.ValueOf(proto); rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface(), nil
	}
	return proto, nil
}

// remember records final outcomes. Transient failures pass through
// unrecorded so a retry with the same key runs the command again.
func (g idempotencyGuard) remember(ctx context.Context, key string, result any, err error) (any, error) {
	record := IdempotencyRecord{Key: key, OccurredAt: time.Now().UTC()}
	if err != nil {
		target, final := g.replayable.match(err)
		if !final {
			return nil, err
		}
		record.Error = target.Error()
		g.save(ctx, record)
		return nil, err
	}
	if result != nil {
		payload, encErr := g.codec.Encode(result)
		if encErr != nil {
			g.logger.WarnContext(ctx, "idempotency result not encodable", "key", key, "error", encErr)
			return result, nil
		}
		record.Payload = payload
	}
	g.save(ctx, record)
	return result, nil
}

func (g idempotencyGuard) save(ctx context.Context, record IdempotencyRecord) {
	if err := g.store.Save(ctx, record); err != nil {
		g.logger.WarnContext(ctx, "idempotency record not saved", "key", record.Key, "error", err)
	}
}
