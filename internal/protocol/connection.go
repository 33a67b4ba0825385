// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port         string        `json:"port"`
	BaudRate     int           `json:"baud_rate"`
	DataBits     int           `json:"data_bits"`
	StopBits     int           `json:"stop_bits"`
	Parity       string        `json:"parity"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultSerialConfig returns the 8N1 settings Marlin boards expect
func DefaultSerialConfig(port string, baudRate int) *SerialConfig {
	return &SerialConfig{
		Port:         port,
		BaudRate:     baudRate,
		DataBits:     8,
		StopBits:     1,
		Parity:       "none",
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
