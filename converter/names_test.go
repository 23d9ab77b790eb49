package converter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	for in, want := range map[string]string{
		"Hips":       "Hips",
		"left arm.L": "left_arm_L",
		"Café":       "Cafe",
		"1st":        "_1st",
		"__":         "",
		"日本":         "",
		"":           "",
	} {
		assert.Equal(t, want, Identifier(in), in)
	}
}

func TestIdentifier_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.Equal(t, "Cafe_creme", Identifier("Café crème"))
			}
		}()
	}
	wg.Wait()
}
