package logging

// Convenience wrappers so callers can write logging.Router(...) instead of
// logging.Get(logging.CategoryRouter).Info(...).

// Boot logs to the boot category at info level.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Session logs to the session category at info level.
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// Router logs to the router category at info level.
func Router(format string, args ...interface{}) { Get(CategoryRouter).Info(format, args...) }

// RouterDebug logs to the router category at debug level.
func RouterDebug(format string, args ...interface{}) { Get(CategoryRouter).Debug(format, args...) }

// System1 logs to the system1 category at info level.
func System1(format string, args ...interface{}) { Get(CategorySystem1).Info(format, args...) }

// System1Debug logs to the system1 category at debug level.
func System1Debug(format string, args ...interface{}) { Get(CategorySystem1).Debug(format, args...) }

// System2 logs to the system2 category at info level.
func System2(format string, args ...interface{}) { Get(CategorySystem2).Info(format, args...) }

// System2Debug logs to the system2 category at debug level.
func System2Debug(format string, args ...interface{}) { Get(CategorySystem2).Debug(format, args...) }

// Sandbox logs to the sandbox category at info level.
func Sandbox(format string, args ...interface{}) { Get(CategorySandbox).Info(format, args...) }

// Learn logs to the learning category at info level.
func Learn(format string, args ...interface{}) { Get(CategoryLearn).Info(format, args...) }

// LearnDebug logs to the learning category at debug level.
func LearnDebug(format string, args ...interface{}) { Get(CategoryLearn).Debug(format, args...) }

// Xfer logs to the transfer category at info level.
func Xfer(format string, args ...interface{}) { Get(CategoryXfer).Info(format, args...) }

// Swarm logs to the swarm category at info level.
func Swarm(format string, args ...interface{}) { Get(CategorySwarm).Info(format, args...) }

// SwarmDebug logs to the swarm category at debug level.
func SwarmDebug(format string, args ...interface{}) { Get(CategorySwarm).Debug(format, args...) }

// Privacy logs to the privacy category at info level.
func Privacy(format string, args ...interface{}) { Get(CategoryPrivacy).Info(format, args...) }

// Store logs to the store category at info level.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }
