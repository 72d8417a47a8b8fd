package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name SnapshotStore --dir ../domain/leaderboard --output domain/leaderboard --outpkg leaderboardmock --filename snapshot_store_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name RosterRepository --dir ../domain/contest --output domain/contest --outpkg contestmock --filename roster_repository_mock.go
