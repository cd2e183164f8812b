package daemon

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"goattach/internal/journal"
)

// service implements the status service backed by the journal.
type service struct {
	journal *journal.Journal
}

func (s *service) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("pong"), nil
}

func (s *service) Outcomes(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	filter, err := FilterFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	entries := s.journal.List(filter)
	values := make([]*structpb.Value, 0, len(entries))
	for _, e := range entries {
		st, err := EntryToStruct(e)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode entry %d: %v", e.ID, err)
		}
		values = append(values, structpb.NewStructValue(st))
	}
	return &structpb.ListValue{Values: values}, nil
}

func (s *service) Counts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	counts := s.journal.Counts()
	fields := make(map[string]any, len(counts))
	for o, n := range counts {
		fields[string(o)] = n
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode counts: %v", err)
	}
	return st, nil
}

// EntryToStruct encodes a journal entry for the wire.
func EntryToStruct(e journal.Entry) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":      float64(e.ID),
		"pid":     e.PID,
		"user":    e.User,
		"main":    e.Main,
		"version": e.Version,
		"outcome": string(e.Outcome),
		"rule":    e.Rule,
		"detail":  e.Detail,
		"cycle":   float64(e.Cycle),
		"at":      e.At.UTC().Format(time.RFC3339Nano),
	})
}

// EntryFromStruct decodes an entry produced by EntryToStruct.
func EntryFromStruct(st *structpb.Struct) journal.Entry {
	f := st.GetFields()
	e := journal.Entry{
		ID:      journal.ID(f["id"].GetNumberValue()),
		PID:     f["pid"].GetStringValue(),
		User:    f["user"].GetStringValue(),
		Main:    f["main"].GetStringValue(),
		Version: f["version"].GetStringValue(),
		Outcome: journal.Outcome(f["outcome"].GetStringValue()),
		Rule:    f["rule"].GetStringValue(),
		Detail:  f["detail"].GetStringValue(),
		Cycle:   uint64(f["cycle"].GetNumberValue()),
	}
	if at, err := time.Parse(time.RFC3339Nano, f["at"].GetStringValue()); err == nil {
		e.At = at
	}
	return e
}

// FilterToStruct encodes a list filter for the wire.
func FilterToStruct(f journal.ListFilter) (*structpb.Struct, error) {
	fields := map[string]any{}
	if len(f.Outcomes) > 0 {
		fields["outcomes"] = stringsToAny(f.Outcomes)
	}
	if len(f.PIDs) > 0 {
		fields["pids"] = stringsToAny(f.PIDs)
	}
	if len(f.Users) > 0 {
		fields["users"] = stringsToAny(f.Users)
	}
	if f.FailedOnly {
		fields["failed_only"] = true
	}
	if f.TextSearch != "" {
		fields["text"] = f.TextSearch
	}
	if f.Limit > 0 {
		fields["limit"] = float64(f.Limit)
	}
	return structpb.NewStruct(fields)
}

// FilterFromStruct decodes a filter built by FilterToStruct. A nil struct means no filter.
func FilterFromStruct(st *structpb.Struct) (journal.ListFilter, error) {
	var f journal.ListFilter
	for key, v := range st.GetFields() {
		switch key {
		case "outcomes":
			for _, s := range listStrings(v) {
				f.Outcomes = append(f.Outcomes, journal.Outcome(s))
			}
		case "pids":
			f.PIDs = listStrings(v)
		case "users":
			f.Users = listStrings(v)
		case "failed_only":
			f.FailedOnly = v.GetBoolValue()
		case "text":
			f.TextSearch = v.GetStringValue()
		case "limit":
			n := v.GetNumberValue()
			if n < 0 {
				return journal.ListFilter{}, fmt.Errorf("limit must be >= 0, got %v", n)
			}
			f.Limit = int(n)
		default:
			return journal.ListFilter{}, fmt.Errorf("unknown filter field %q", key)
		}
	}
	return f, nil
}

func stringsToAny[T ~string](xs []T) []any {
	out := make([]any, 0, len(xs))
	for _, x := range xs {
		out = append(out, string(x))
	}
	return out
}

func listStrings(v *structpb.Value) []string {
	values := v.GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStringValue())
	}
	return out
}
