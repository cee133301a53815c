// Package storage provides the link storage backends for FileLink.
//
// Every backend implements service.LinkRepository plus Get, Ping and Close
// (the Backend interface). Open picks one by name:
//
//   - memory: sharded in-process map, lost on restart
//   - badger: embedded Badger database under data_dir (this package)
//   - sqlite: gorm over a single SQLite file
//   - postgres: pgx pool with embedded migrations
//   - redis: go-redis with Lua scripts
//
// Each backend makes consume a single atomic step per token; see the
// subpackage docs for how.
package storage
