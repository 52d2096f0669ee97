package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons, in
// dependency order:
//  1. Config (no dependencies)
//  2. Logger (depends on Config)
//  3. Store (depends on Config)
//  4. Watcher (depends on Config, Store)
//  5. Gate (depends on Config)
//  6. Handler (depends on Store)
//  7. Server (depends on Handler, Config).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewStore)
	do.Provide(i, NewWatcher)
	do.Provide(i, NewGate)
	do.Provide(i, NewHandler)
	do.Provide(i, NewHTTPServer)
}
