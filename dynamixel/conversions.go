package dynamixel

import (
	"encoding/binary"
	"math"
)

// TicksToRadians converts Dynamixel encoder ticks to radians.
// The motor has 4096 ticks per revolution with center at 2048.
func TicksToRadians(ticks int) float64 {
	offset := float64(ticks - CenterPosition)
	return offset * (2.0 * math.Pi / float64(TicksPerRevolution))
}

// VelocityToRadians converts present-velocity units to rad/s.
func VelocityToRadians(units int) float64 {
	return float64(units) * VelocityUnitRPM * 2.0 * math.Pi / 60.0
}

// CurrentToAmps converts present-current units to amperes.
func CurrentToAmps(units int) float64 {
	return float64(units) * CurrentUnitAmps
}

// BytesToInt32 converts 4 bytes (little-endian) to an int32.
func BytesToInt32(data []byte) int32 {
	if len(data) < 4 {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(data))
}

// BytesToInt16 converts 2 bytes (little-endian) to an int16.
func BytesToInt16(data []byte) int16 {
	if len(data) < 2 {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(data))
}

// presentReading is one decoded present-state block.
type presentReading struct {
	position float64 // rad
	velocity float64 // rad/s
	current  float64 // A
}

// decodePresent decodes a block read starting at AddrPresentCurrent.
func decodePresent(data []byte) (presentReading, bool) {
	if len(data) < presentBlockLen {
		return presentReading{}, false
	}
	return presentReading{
		current:  CurrentToAmps(int(BytesToInt16(data[0:2]))),
		velocity: VelocityToRadians(int(BytesToInt32(data[2:6]))),
		position: TicksToRadians(int(BytesToInt32(data[6:10]))),
	}, true
}
