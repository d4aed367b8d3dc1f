package offline

import (
	"coder_edu_sync/internal/model"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func ProgressIdentity(userID, moduleID string) string {
	return strings.Join([]string{string(model.MutationProgress), userID, moduleID}, ":")
}

func TodoIdentity(userID, moduleID, todoID string) string {
	return strings.Join([]string{string(model.MutationTodo), userID, moduleID, todoID}, ":")
}

func NewProgressMutation(req model.ProgressUpsert) (model.PendingMutation, error) {
	return newMutation(model.MutationProgress, req)
}

func NewTodoMutation(req model.TodoUpsert) (model.PendingMutation, error) {
	return newMutation(model.MutationTodo, req)
}

func newMutation(kind model.MutationKind, payload interface{}) (model.PendingMutation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.PendingMutation{}, fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	m := model.PendingMutation{Kind: kind, Payload: raw}
	if _, err := decodeMutation(&m); err != nil {
		return model.PendingMutation{}, err
	}
	return m, nil
}

// decodeMutation 解码并校验载荷，同时根据载荷重新计算 IdentityKey。
// 返回 model.ProgressUpsert 或 model.TodoUpsert
func decodeMutation(m *model.PendingMutation) (interface{}, error) {
	switch m.Kind {
	case model.MutationProgress:
		var req model.ProgressUpsert
		if err := decodePayload(m.Payload, &req); err != nil {
			return nil, err
		}
		m.IdentityKey = ProgressIdentity(req.UserID, req.ModuleID)
		return req, nil
	case model.MutationTodo:
		var req model.TodoUpsert
		if err := decodePayload(m.Payload, &req); err != nil {
			return nil, err
		}
		m.IdentityKey = TodoIdentity(req.UserID, req.ModuleID, req.TodoID)
		return req, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidMutation, m.Kind)
	}
}

func decodePayload(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidMutation)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	return nil
}
