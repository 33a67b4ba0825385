// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"printer-service/internal/config"
)

const defaultLogFile = "./logs/printer-service.log"

// LoggerManager builds the process logger from configuration
type LoggerManager struct {
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager := &LoggerManager{config: cfg}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	encoderConfig := lm.getEncoderConfig()

	var encoder zapcore.Encoder
	switch lm.config.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := ParseLevel(lm.config.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder
	config.MessageKey = "message"
	config.StacktraceKey = "stacktrace"

	if lm.config.Format == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// getWriteSyncer returns stdout, stderr or a rotated log file
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}

	path := lm.config.Output
	if path == "" {
		path = defaultLogFile
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    lm.config.MaxSize, // MB
		MaxBackups: lm.config.MaxBackups,
		MaxAge:     lm.config.MaxAge, // days
		Compress:   lm.config.Compress,
	}), nil
}

// ParseLevel maps a configured level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// ConnectionLogger wraps zap.Logger with printer connection fields
type ConnectionLogger struct {
	*zap.Logger
	port string
}

// NewConnectionLogger creates a logger scoped to one serial port
func NewConnectionLogger(baseLogger *zap.Logger, port string) *ConnectionLogger {
	if baseLogger == nil {
		baseLogger = zap.NewNop()
	}

	return &ConnectionLogger{
		Logger: baseLogger.With(
			zap.String("port", port),
			zap.String("component", "connection"),
		),
		port: port,
	}
}

// LogStateChange logs a connection state transition
func (cl *ConnectionLogger) LogStateChange(from, to string) {
	cl.Info("Connection state changed",
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogProbe logs the outcome of one bitrate probe
func (cl *ConnectionLogger) LogProbe(bitrate, successes int, duration time.Duration, success bool) {
	fields := []zap.Field{
		zap.Int("bitrate", bitrate),
		zap.Int("successes", successes),
		zap.Duration("duration", duration),
		zap.Bool("success", success),
	}

	if success {
		cl.Info("Bitrate probe succeeded", fields...)
	} else {
		cl.Debug("Bitrate probe failed", fields...)
	}
}

// LogWrite logs a failed or retried transport write
func (cl *ConnectionLogger) LogWrite(line string, attempt int, err error) {
	fields := []zap.Field{
		zap.String("line", line),
		zap.Int("attempt", attempt),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		cl.Warn("Transport write failed", fields...)
	} else {
		cl.Debug("Transport write retried", fields...)
	}
}

// LogPrinterError logs an error line reported by the firmware
func (cl *ConnectionLogger) LogPrinterError(text string, fatal bool) {
	if fatal {
		cl.Error("Printer reported fatal error", zap.String("text", text))
		return
	}
	cl.Warn("Printer reported error", zap.String("text", text))
}

// JobLogger provides structured logging for one print job
type JobLogger struct {
	logger    *zap.Logger
	jobID     string
	startTime time.Time
}

// NewJobLogger creates a job-specific logger
func NewJobLogger(baseLogger *zap.Logger, jobID string, lines int) *JobLogger {
	return &JobLogger{
		logger: baseLogger.With(
			zap.String("job_id", jobID),
			zap.Int("program_lines", lines),
		),
		jobID:     jobID,
		startTime: time.Now(),
	}
}

// JobID returns the identifier the job was logged under
func (jl *JobLogger) JobID() string {
	return jl.jobID
}

// Start logs job start
func (jl *JobLogger) Start(fields ...zap.Field) {
	jl.logger.Info("Print job started", fields...)
}

// Success logs job completion
func (jl *JobLogger) Success(fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Duration("duration", time.Since(jl.startTime)),
		zap.Bool("success", true),
	}, fields...)

	jl.logger.Info("Print job completed", allFields...)
}

// Stop logs a job that ended before completion
func (jl *JobLogger) Stop(reason string, err error) {
	fields := []zap.Field{
		zap.Duration("duration", time.Since(jl.startTime)),
		zap.Bool("success", false),
		zap.String("reason", reason),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		jl.logger.Error("Print job aborted", fields...)
		return
	}
	jl.logger.Info("Print job stopped", fields...)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	logger := baseLogger.With(
		zap.String("service", serviceName),
		zap.String("component", "service"),
	)

	return &ServiceLogger{
		Logger:      logger,
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping",
		zap.String("reason", reason),
	)
}

// APIRequest describes one served HTTP request
type APIRequest struct {
	Method     string
	Path       string
	Route      string
	RequestID  string
	UserAgent  string
	ClientIP   string
	StatusCode int
	Duration   time.Duration
}

// LogAPIRequest logs HTTP API requests. Probe endpoints log at debug level.
func (sl *ServiceLogger) LogAPIRequest(req APIRequest) {
	level := zapcore.InfoLevel
	switch {
	case req.StatusCode >= 500:
		level = zapcore.ErrorLevel
	case req.StatusCode >= 400:
		level = zapcore.WarnLevel
	case req.Route == "/live" || req.Route == "/ready":
		level = zapcore.DebugLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("route", req.Route),
			zap.String("request_id", req.RequestID),
			zap.String("user_agent", req.UserAgent),
			zap.String("client_ip", req.ClientIP),
			zap.Int("status_code", req.StatusCode),
			zap.Duration("duration", req.Duration),
		)
	}
}

// AuditLogger records operator actions against printers
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit-specific logger
func NewAuditLogger(baseLogger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: baseLogger.With(zap.String("component", "audit")),
	}
}

// LogPrinterAction logs a control request and whether the printer accepted it
func (al *AuditLogger) LogPrinterAction(port, action, requestID string, err error) {
	fields := []zap.Field{
		zap.String("port", port),
		zap.String("action", action),
		zap.String("request_id", requestID),
		zap.Bool("success", err == nil),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	al.logger.Info("Printer action", fields...)
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// LogError is a helper function for consistent error logging
func LogError(logger *zap.Logger, message string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.Error(err)}, fields...)
	logger.Error(message, allFields...)
}

// CloseLogger flushes buffered log entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
