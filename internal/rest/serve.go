// Copyright (C) 2021 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/despike/internal/config"
	"github.com/mlnoga/despike/internal/job"
)

// Serves the despeckling pipeline over REST on the given address, optionally
// sandboxed via chroot and setuid. Blocks until the server terminates
func Serve(addr, chroot string, setuid int, cfg *config.Config) error {
	if err := MakeSandbox(chroot, setuid); err != nil {
		return err
	}

	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/despike", postDespike(cfg))
		}
	}
	return r.Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

type postDespikeArgs struct {
	FilePatterns []string       `json:"filePatterns"`
	Config       *config.Config `json:"config"`
}

// Returns a handler that runs the despeckling pipeline over the posted file
// patterns, streaming the job log as plain text. The posted config overrides
// the server defaults if present
func postDespike(serverCfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		logWriter := c.Writer
		var args postDespikeArgs
		if err := c.ShouldBind(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cfg := serverCfg
		if args.Config != nil {
			cfg = args.Config
		}

		logWriter.Header().Set("Content-Type", "text/plain")
		logWriter.WriteHeader(http.StatusOK)

		if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
			fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
			return
		}

		if err := job.RunFiles(args.FilePatterns, cfg, logWriter); err != nil {
			fmt.Fprintf(logWriter, "error: %s\n", err.Error())
		}
		logWriter.(http.Flusher).Flush()
	}
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}
