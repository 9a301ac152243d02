package imports

import (
	"context"
	"testing"

	"github.com/dejo1307/docdrift/internal/snapshot"
)

func importPaths(imps []Import) []string {
	var out []string
	for _, i := range imps {
		out = append(out, i.Path)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		file string
		src  string
		want []string
	}{
		{
			name: "go imports",
			file: "cmd/app/main.go",
			src:  "package main\n\nimport (\n\t\"fmt\"\n\tapi \"example.com/demo/internal/api\"\n)\n",
			want: []string{"fmt", "example.com/demo/internal/api"},
		},
		{
			name: "typescript imports and requires",
			file: "src/index.ts",
			src:  "import { a } from './a';\nimport b from \"lib\";\nexport * from './c';\nconst d = require('./d');\nconst e = await import('./e');\n",
			want: []string{"./a", "lib", "./c", "./d", "./e"},
		},
		{
			name: "jsx",
			file: "web/App.jsx",
			src:  "import React from 'react';\nimport Nav from './Nav';\nexport default function App() { return <Nav />; }\n",
			want: []string{"react", "./Nav"},
		},
		{
			name: "python",
			file: "app/views.py",
			src:  "import os, sys as system\nfrom . import models\nfrom ..core.db import session\nfrom app.services import users\n",
			want: []string{"os", "sys", ".", "..core.db", "app.services"},
		},
		{
			name: "ruby",
			file: "lib/app.rb",
			src:  "require 'json'\nrequire_relative 'app/user'\n",
			want: []string{"json", "./app/user"},
		},
		{
			name: "java",
			file: "src/main/java/com/acme/App.java",
			src:  "package com.acme;\nimport com.acme.service.UserService;\nimport static java.util.Objects.requireNonNull;\nimport com.acme.model.*;\n",
			want: []string{"com.acme.service.UserService", "java.util.Objects.requireNonNull", "com.acme.model.*"},
		},
		{
			name: "rust",
			file: "src/main.rs",
			src:  "mod config;\npub mod db;\nuse crate::db::pool;\nuse std::io;\n",
			want: []string{"./config", "./db", "crate::db::pool"},
		},
		{
			name: "c include",
			file: "src/main.c",
			src:  "#include <stdio.h>\n#include \"util.h\"\n",
			want: []string{"util.h"},
		},
		{
			name: "unsupported",
			file: "README.md",
			src:  "import x from 'y'",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := importPaths(Parse(tt.file, []byte(tt.src)))
			if !equal(got, tt.want) {
				t.Errorf("Parse(%s) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestParse_LineNumbers(t *testing.T) {
	imps := Parse("a.py", []byte("\"\"\"doc\"\"\"\n\nimport os\n"))
	if len(imps) != 1 || imps[0].Line != 3 {
		t.Fatalf("got %+v, want one import on line 3", imps)
	}
}

func TestResolve(t *testing.T) {
	files := []string{
		"go.mod",
		"internal/api/api.go",
		"src/components/Button.tsx",
		"src/utils/index.ts",
		"web/lib/format.js",
		"app/__init__.py",
		"app/models.py",
		"app/core/db.py",
		"lib/app/user.rb",
		"src/main/java/com/acme/service/UserService.java",
		"src/main/java/com/acme/model/User.java",
		"crate/src/main.rs",
		"crate/src/db/mod.rs",
		"crate/src/db/pool.rs",
		"crate/src/config.rs",
		"native/util.h",
	}
	r := NewResolver(files, "example.com/demo", map[string]string{"@/": "src/"})

	tests := []struct {
		from, imp string
		want      string
		ok        bool
	}{
		{"cmd/app/main.go", "example.com/demo/internal/api", "internal/api", true},
		{"cmd/app/main.go", "github.com/spf13/cobra", "", false},
		{"src/pages/home.tsx", "../components/Button", "src/components/Button.tsx", true},
		{"src/pages/home.tsx", "@/utils", "src/utils/index.ts", true},
		{"web/app.js", "./lib/format", "web/lib/format.js", true},
		{"web/app.js", "react", "", false},
		{"app/views.py", ".", "app/__init__.py", true},
		{"app/views.py", ".models", "app/models.py", true},
		{"app/api/routes.py", "..core.db", "app/core/db.py", true},
		{"scripts/run.py", "app.models", "app/models.py", true},
		{"scripts/run.py", "requests", "", false},
		{"lib/app.rb", "./app/user", "lib/app/user.rb", true},
		{"lib/app.rb", "app/user", "lib/app/user.rb", true},
		{"src/main/java/com/acme/App.java", "com.acme.service.UserService", "src/main/java/com/acme/service/UserService.java", true},
		{"src/main/java/com/acme/App.java", "com.acme.model.*", "src/main/java/com/acme/model", true},
		{"crate/src/main.rs", "./config", "crate/src/config.rs", true},
		{"crate/src/main.rs", "./db", "crate/src/db/mod.rs", true},
		{"crate/src/main.rs", "crate::db::pool", "crate/src/db/pool.rs", true},
		{"native/main.c", "util.h", "native/util.h", true},
	}
	for _, tt := range tests {
		t.Run(tt.from+" "+tt.imp, func(t *testing.T) {
			got, ok := r.Resolve(tt.from, Import{Path: tt.imp})
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve(%s, %s) = (%q, %v), want (%q, %v)", tt.from, tt.imp, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTSConfigAliases(t *testing.T) {
	aliases := TSConfigAliases([]byte(`{"compilerOptions":{"baseUrl":".","paths":{"@/*":["./src/*"],"~lib/*":["lib/*"],"*":["types/*"]}}}`))
	if aliases["@/"] != "src/" || aliases["~lib/"] != "lib/" {
		t.Errorf("unexpected aliases: %v", aliases)
	}
	if _, ok := aliases[""]; ok {
		t.Error("catch-all pattern should be ignored")
	}
	if len(TSConfigAliases([]byte("// comments are not JSON"))) != 0 {
		t.Error("invalid tsconfig should yield no aliases")
	}
}

func TestScan(t *testing.T) {
	snap := snapshot.NewMemory(map[string]string{
		"go.mod":                   "module example.com/demo\n\ngo 1.22\n",
		"cmd/app/main.go":          "package main\n\nimport \"example.com/demo/internal/api\"\n\nfunc main() { api.Run() }\n",
		"internal/api/api.go":      "package api\n\nimport \"example.com/demo/internal/store\"\n\nfunc Run() { store.Open() }\n",
		"internal/api/handlers.go": "package api\n",
		"internal/store/store.go":  "package store\n\nimport \"example.com/demo/internal/api\"\n\nfunc Open() { _ = api.Run }\n",
		"internal/unused/unused.go": "package unused\n",
	})

	g, err := Scan(context.Background(), snap)
	if err != nil {
		t.Fatal(err)
	}

	if got := g.Modules.Edges["cmd/app"]; !equal(got, []string{"internal/api"}) {
		t.Errorf("cmd/app edges = %v", got)
	}
	cycles := g.Modules.Cycles()
	if len(cycles) != 1 || !equal(cycles[0], []string{"internal/api", "internal/store"}) {
		t.Errorf("cycles = %v, want api<->store", cycles)
	}
	if g.Inbound["internal/api/handlers.go"] != 2 {
		t.Errorf("handlers.go inbound = %d, want 2 (package import credits every file)", g.Inbound["internal/api/handlers.go"])
	}
	if g.Inbound["internal/unused/unused.go"] != 0 {
		t.Errorf("unused.go should have no inbound references")
	}
	if !g.Modules.HasNode("internal/unused") {
		t.Error("modules without edges should still be nodes")
	}
}
