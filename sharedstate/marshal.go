package sharedstate

import (
	"fmt"

	"github.com/dogmatiq/jobpack/registry"
	"github.com/dogmatiq/jobpack/workflow"
	"google.golang.org/protobuf/types/known/structpb"
)

func marshalWorkItem(it workflow.WorkItem, ok bool) (*structpb.Struct, error) {
	if !ok {
		return structpb.NewStruct(map[string]interface{}{
			"found": false,
		})
	}

	spec := workflow.PlainMap(it.Spec)
	if spec == nil {
		spec = map[string]interface{}{}
	}

	s, err := structpb.NewStruct(map[string]interface{}{
		"found": true,
		"id":    string(it.ID),
		"spec":  spec,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to marshal work-item '%s': %w", it.ID, err)
	}

	return s, nil
}

func unmarshalWorkItem(s *structpb.Struct) (workflow.WorkItem, bool) {
	f := s.GetFields()

	if !f["found"].GetBoolValue() {
		return workflow.WorkItem{}, false
	}

	return workflow.WorkItem{
		ID:   workflow.WorkItemID(f["id"].GetStringValue()),
		Spec: f["spec"].GetStructValue().AsMap(),
	}, true
}

func marshalResult(id workflow.WorkItemID, r workflow.Result) (*structpb.Struct, error) {
	out := workflow.PlainMap(r.Output)
	if out == nil {
		out = map[string]interface{}{}
	}

	s, err := structpb.NewStruct(map[string]interface{}{
		"id":     string(id),
		"error":  r.Error,
		"output": out,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to marshal the result of work-item '%s': %w", id, err)
	}

	return s, nil
}

func unmarshalResult(s *structpb.Struct) (workflow.WorkItemID, workflow.Result) {
	f := s.GetFields()

	r := workflow.Result{
		Error: f["error"].GetStringValue(),
	}

	if out := f["output"].GetStructValue(); len(out.GetFields()) > 0 {
		r.Output = out.AsMap()
	}

	return workflow.WorkItemID(f["id"].GetStringValue()), r
}

func marshalEntry(e registry.Entry) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"pid":          structpb.NewNumberValue(float64(e.PID)),
			"work_item_id": structpb.NewStringValue(string(e.WorkItemID)),
		},
	}
}

func unmarshalEntry(s *structpb.Struct) (registry.Entry, error) {
	f := s.GetFields()

	pid, ok := f["pid"].GetKind().(*structpb.Value_NumberValue)
	if !ok || pid.NumberValue <= 0 {
		return registry.Entry{}, fmt.Errorf("registry entry has an invalid PID")
	}

	return registry.Entry{
		PID:        int(pid.NumberValue),
		WorkItemID: workflow.WorkItemID(f["work_item_id"].GetStringValue()),
	}, nil
}

func marshalEntries(entries []registry.Entry) *structpb.ListValue {
	l := &structpb.ListValue{}

	for _, e := range entries {
		l.Values = append(l.Values, structpb.NewStructValue(marshalEntry(e)))
	}

	return l
}

func unmarshalEntries(l *structpb.ListValue) ([]registry.Entry, error) {
	var entries []registry.Entry

	for _, v := range l.GetValues() {
		e, err := unmarshalEntry(v.GetStructValue())
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, nil
}
