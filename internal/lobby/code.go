// internal/lobby/code.go
package lobby

import (
	"context"
	"fmt"
	"math/rand"
)

var codeAdjectives = []string{"SWIFT", "BRIGHT", "SMART", "QUICK", "SHARP", "WISE", "BOLD", "KEEN"}
var codeNouns = []string{"MIND", "BRAIN", "THINK", "LOGIC", "SPARK", "FLASH", "NOVA", "APEX"}

// generateCode builds a memorable lobby code like SWIFTMIND42.
func generateCode() string {
	adj := codeAdjectives[rand.Intn(len(codeAdjectives))]
	noun := codeNouns[rand.Intn(len(codeNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, rand.Intn(100))
}

// maxCodeAttempts bounds the collision-check loop; with ~6400 combinations a
// handful of retries is plenty for realistic lobby counts.
const maxCodeAttempts = 10

// uniqueCode generates a code that no stored lobby currently uses.
func (m *Manager) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := generateCode()
		exists, err := m.store.LobbyCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique lobby code after %d attempts", maxCodeAttempts)
}
