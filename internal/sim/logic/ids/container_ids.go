package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// UnloadKey identifies a weapon by the container holding it and its slot.
func UnloadKey(containerID uint64, slot int) string {
	return fmt.Sprintf("%d_%d", containerID, slot)
}

func ParseUnloadKey(key string) (containerID uint64, slot int, ok bool) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	c, err1 := strconv.ParseUint(parts[0], 10, 64)
	s, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || s < 0 {
		return 0, 0, false
	}
	return c, s, true
}

// WeaponFallbackKey is used when a weapon's slot cannot be resolved.
// Empty parts are omitted; position is rounded to two decimals.
func WeaponFallbackKey(name string, instance uint64, x, y, z float64) string {
	parts := make([]string, 0, 3)
	if name != "" {
		parts = append(parts, "ID:"+name)
	}
	if instance != 0 {
		parts = append(parts, fmt.Sprintf("Instance:%d", instance))
	}
	parts = append(parts, fmt.Sprintf("Pos:%.2f,%.2f,%.2f", x, y, z))
	return strings.Join(parts, "|")
}

func ContainerLabel(id uint64) string {
	return fmt.Sprintf("C%d", id)
}

// ParseContainerLabel accepts both "C12" and "12".
func ParseContainerLabel(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if n, ok := uintAfterPrefix("C", s); ok {
		return n, true
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func uintAfterPrefix(prefix, s string) (uint64, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(s[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
