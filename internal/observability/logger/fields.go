package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP fields.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }

// Duration of the request.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Pipeline fields.

// Event is the stable operational event tag attached to every terminal
// pipeline outcome. Tags are for operators only and never reach callers.
func Event(v string) zap.Field { return zap.String("event", v) }

// Stage names the pipeline stage being executed.
func Stage(v string) zap.Field { return zap.String("stage", v) }

func SessionID(v string) zap.Field { return zap.String("session_id", v) }
func JourneyID(v string) zap.Field { return zap.String("journey_id", v) }
func Subject(v string) zap.Field   { return zap.String("sub", v) }
func ClientID(v string) zap.Field  { return zap.String("client_id", v) }
func Issuer(v string) zap.Field    { return zap.String("issuer", v) }
func KeyID(v string) zap.Field     { return zap.String("key_id", v) }

// System fields.

// Op names the operation in progress (e.g. "CredentialService.Process").
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer is the architectural layer: handler, service, store.
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Err wraps an error field.
func Err(err error) zap.Field { return zap.Error(err) }

// Generic fields.

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
func Any(key string, v any) zap.Field { return zap.Any(key, v) }
