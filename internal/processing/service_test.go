package processing

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_Handle(t *testing.T) {
	svc := NewService()

	tests := []struct {
		name  string
		query string
		want  Response
	}{
		{"simple", "hello", Response{Query: "hello", Status: "processed", Message: "Processed query: hello"}},
		{"empty", "", Response{Query: "", Status: "processed", Message: "Processed query: "}},
		{"unicode", "ステッチ 破損", Response{Query: "ステッチ 破損", Status: "processed", Message: "Processed query: ステッチ 破損"}},
		{"whitespace kept", "  spaced  ", Response{Query: "  spaced  ", Status: "processed", Message: "Processed query:   spaced  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Handle(tt.query))
		})
	}
}

func TestService_Handle_Deterministic(t *testing.T) {
	svc := NewService()
	q := strings.Repeat("x", 10000)

	first := svc.Handle(q)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, first, svc.Handle(q))
		}()
	}
	wg.Wait()
	assert.Contains(t, first.Message, q)
}
