// Package storagetest holds the behavioural test suite every link storage
// backend must pass.
//
// A backend test calls Run with a factory returning a fresh, empty store:
//
//	func TestConformance(t *testing.T) {
//		storagetest.Run(t, func(t *testing.T) storagetest.Store {
//			return memory.New()
//		})
//	}
package storagetest
