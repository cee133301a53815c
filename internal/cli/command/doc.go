// Package command defines the filelink-cli commands on top of urfave/cli/v2.
//
// Every command talks to filelink-server over HTTP and writes its result
// to the app writer in the selected output format.
package command
