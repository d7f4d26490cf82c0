// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "with field",
			err:  &ValidationError{Field: "items[0].rarity", Message: "unknown enum value"},
			want: "validation failed on items[0].rarity: unknown enum value",
		},
		{
			name: "without field",
			err:  &ValidationError{Message: "empty delta"},
			want: "validation failed: empty delta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPathError(t *testing.T) {
	err := &PathError{Op: PathOpUpdate, Path: "items[3].item_name", Reason: "index 3 out of range"}
	assert.Equal(t, `update "items[3].item_name": index 3 out of range`, err.Error())
	assert.False(t, err.TypeMismatch)
}

func TestToolErrorUnwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ToolError{Tool: "build", TaskID: "build", Message: "gradle failed", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "tool build failed")
}

func TestDeadlockError(t *testing.T) {
	err := &DeadlockError{Pending: []string{"a", "b"}}
	assert.Contains(t, err.Error(), "2 task(s) pending")
}

func TestRunStateError(t *testing.T) {
	err := &RunStateError{RunID: "r1", State: "running", Op: "approve"}
	assert.Equal(t, "run r1: cannot approve in state running", err.Error())
}

func TestTimeoutErrorUnwrap(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &TimeoutError{Operation: "generate_texture", Duration: 90 * time.Second, Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "90s")
}

func TestConfigErrorWrapping(t *testing.T) {
	cause := errors.New("yaml: line 3")
	err := &ConfigError{Key: "executor.fan_out", Reason: "parse failure", Cause: cause}
	wrapped := fmt.Errorf("loading config: %w", err)

	var ce *ConfigError
	assert.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, "executor.fan_out", ce.Key)
	assert.ErrorIs(t, wrapped, cause)
}
