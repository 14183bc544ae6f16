package rest

import (
	"bytes"
	"errors"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrEmptyResult is reported by a Result that was never populated.
var ErrEmptyResult = errors.New("result carries neither a value nor an error")

// Result holds either a value or an error, never both and never neither.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Fail builds a failed Result. A nil err still yields a failure.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = ErrEmptyResult
	}
	return Result[T]{err: err}
}

func (r Result[T]) OK() bool {
	return r.ok
}

func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	if r.err == nil {
		return ErrEmptyResult
	}
	return r.err
}

func (r Result[T]) Value() (T, bool) {
	if !r.ok {
		var zero T
		return zero, false
	}
	return r.value, true
}

func (r Result[T]) Unwrap() (T, error) {
	v, _ := r.Value()
	return v, r.Err()
}

// Ack is the value of calls whose answer body carries no contract.
type Ack struct {
	Status int
	Body   []byte
}

// Normalize turns a raw response into a Result. Transport failures and
// non-2xx answers become errors, anything else is decoded into T. An empty
// body yields the zero T.
func Normalize[T any](op string, resp *Response) Result[T] {
	if resp == nil {
		return Fail[T](connerr.New(connerr.KindTransport, op, errors.New("no response")))
	}
	if resp.StatusCode == 0 {
		detail := resp.ErrorDetail
		if detail == "" {
			detail = "no HTTP answer"
		}
		log.Error().Str("op", op).Str("error", detail).Msg("Error happened during the execution of a request")
		return Fail[T](connerr.New(connerr.KindTransport, op, errors.New(detail)))
	}
	if !resp.StatusOK {
		log.Error().Str("op", op).Int("status", resp.StatusCode).Bytes("body", truncate(resp.Body, 512)).Msg("Request answered with an error status")
		return Fail[T](connerr.Status(op, resp.StatusCode, string(truncate(resp.Body, 512))))
	}

	var v T
	if ack, isAck := any(&v).(*Ack); isAck {
		ack.Status = resp.StatusCode
		ack.Body = resp.Body
		return Ok(v)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return Ok(v)
	}
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		log.Error().Err(err).Str("op", op).Bytes("body", truncate(resp.Body, 512)).Msg("Failed to decode response body")
		return Fail[T](connerr.New(connerr.KindDecode, op, err))
	}
	return Ok(v)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
