// Package vocab is the shared technology vocabulary: how a technology is named
// in prose and how it shows up in code (packages, imports, files).
package vocab

import (
	"path"
	"regexp"
	"strings"
)

// Technology kinds.
const (
	KindFramework = "framework"
	KindDatastore = "datastore"
	KindMessaging = "messaging"
	KindInfra     = "infra"
	KindAPI       = "api"
	KindTelemetry = "telemetry"
	KindSecurity  = "security"
)

// Technology is one vocabulary entry.
type Technology struct {
	Name     string
	Kind     string
	Pattern  *regexp.Regexp // prose mention
	Packages []string       // dependency names (exact, or prefix for Go module paths)
	Files    []string       // basenames or extensions (".proto") signalling use
	Security bool

	versioned *regexp.Regexp // mention followed by a major.minor version
}

func tech(name, kind, pattern string, packages []string, files ...string) Technology {
	return Technology{
		Name:     name,
		Kind:     kind,
		Pattern:  regexp.MustCompile(`(?i)(?:^|[^\w.-])(?:` + pattern + `)(?:$|[^\w-])`),
		Packages: packages,
		Files:    files,

		versioned: regexp.MustCompile(`(?i)(?:^|[^\w.-])(?:` + pattern + `)\s*v?(\d+\.\d+(?:\.\d+)?)(\+)?`),
	}
}

func secure(t Technology) Technology {
	t.Security = true
	return t
}

// Technologies is the ordered vocabulary.
var Technologies = []Technology{
	tech("Flask", KindFramework, `flask`, []string{"flask"}),
	tech("Django", KindFramework, `django`, []string{"django"}),
	tech("FastAPI", KindFramework, `fastapi`, []string{"fastapi"}),
	tech("Express", KindFramework, `(?-i:Express)(?:\.js)?|expressjs`, []string{"express"}),
	tech("React", KindFramework, `(?-i:React)(?:\.js)?|reactjs`, []string{"react"}),
	tech("Vue", KindFramework, `vue(?:\.js|js)?`, []string{"vue"}),
	tech("Angular", KindFramework, `angular`, []string{"@angular/core"}),
	tech("Next.js", KindFramework, `next\.?js`, []string{"next"}),
	tech("Spring Boot", KindFramework, `spring[ -]?boot`, []string{"org.springframework.boot", "spring-boot-starter", "spring-boot-starter-web"}),
	tech("Rails", KindFramework, `ruby on rails|(?-i:Rails)`, []string{"rails"}),
	tech("Gin", KindFramework, `gin(?: framework| web framework)|gin-gonic`, []string{"github.com/gin-gonic/gin"}),
	tech("Echo", KindFramework, `labstack/echo|echo framework`, []string{"github.com/labstack/echo"}),
	tech("Chi", KindFramework, `go-chi|chi router`, []string{"github.com/go-chi/chi"}),
	tech("Cobra", KindFramework, `cobra`, []string{"github.com/spf13/cobra"}),
	tech("Celery", KindMessaging, `celery`, []string{"celery"}),
	tech("Docker", KindInfra, `docker(?:file)?|docker[ -]compose`, nil, "Dockerfile", "docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"),
	tech("Kubernetes", KindInfra, `kubernetes|k8s`, nil, "Chart.yaml", "kustomization.yaml", "kustomization.yml"),
	tech("Terraform", KindInfra, `terraform`, nil, ".tf"),
	tech("PostgreSQL", KindDatastore, `postgres(?:ql)?`, []string{"psycopg2", "psycopg2-binary", "psycopg", "asyncpg", "pg", "github.com/lib/pq", "github.com/jackc/pgx", "gorm.io/driver/postgres"}),
	tech("MySQL", KindDatastore, `mysql|mariadb`, []string{"mysql", "mysql2", "pymysql", "mysqlclient", "github.com/go-sql-driver/mysql", "gorm.io/driver/mysql"}),
	tech("SQLite", KindDatastore, `sqlite3?`, []string{"sqlite3", "better-sqlite3", "github.com/mattn/go-sqlite3", "modernc.org/sqlite", "gorm.io/driver/sqlite"}),
	tech("MongoDB", KindDatastore, `mongo(?:db)?`, []string{"mongodb", "mongoose", "pymongo", "motor", "go.mongodb.org/mongo-driver"}),
	tech("Redis", KindDatastore, `redis`, []string{"redis", "ioredis", "github.com/redis/go-redis", "github.com/go-redis/redis"}),
	tech("Kafka", KindMessaging, `(?:apache )?kafka`, []string{"kafkajs", "kafka-python", "confluent-kafka", "github.com/segmentio/kafka-go", "github.com/IBM/sarama", "github.com/Shopify/sarama"}),
	tech("RabbitMQ", KindMessaging, `rabbitmq|amqp`, []string{"amqplib", "pika", "github.com/rabbitmq/amqp091-go", "github.com/streadway/amqp"}),
	tech("GraphQL", KindAPI, `graphql`, []string{"graphql", "apollo-server", "@apollo/server", "graphene", "strawberry-graphql", "ariadne", "github.com/99designs/gqlgen", "github.com/graphql-go/graphql"}, ".graphql", ".gql"),
	tech("gRPC", KindAPI, `grpc`, []string{"grpcio", "@grpc/grpc-js", "google.golang.org/grpc"}, ".proto"),
	tech("REST", KindAPI, `(?-i:REST(?:ful)?|RESTful)(?: api)?|http api|json api`, nil),
	tech("Prometheus", KindTelemetry, `prometheus`, []string{"github.com/prometheus/client_golang", "prometheus-client", "prometheus_client", "prom-client"}),
	tech("OpenTelemetry", KindTelemetry, `opentelemetry|otel`, []string{"go.opentelemetry.io/otel", "@opentelemetry/api", "opentelemetry-api", "opentelemetry-sdk"}),
	secure(tech("JWT", KindSecurity, `jwt|json web tokens?`, []string{"jsonwebtoken", "pyjwt", "jose", "github.com/golang-jwt/jwt", "github.com/dgrijalva/jwt-go"})),
	secure(tech("OAuth", KindSecurity, `oauth ?2?(?:\.0)?`, []string{"oauthlib", "authlib", "passport", "golang.org/x/oauth2", "next-auth"})),
}

// Lookup returns the technology with the given name (case-insensitive).
func Lookup(name string) (Technology, bool) {
	for _, t := range Technologies {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Technology{}, false
}

// Mentions returns the technologies mentioned in text, in vocabulary order.
func Mentions(text string) []Technology {
	var out []Technology
	for _, t := range Technologies {
		if t.Pattern.MatchString(text) {
			out = append(out, t)
		}
	}
	return out
}

// VersionIn returns the version stated right after a mention of t in text,
// and whether it was followed by "+".
func (t Technology) VersionIn(text string) (version string, orLater bool, ok bool) {
	m := t.versioned.FindStringSubmatch(text)
	if m == nil {
		return "", false, false
	}
	return m[1], m[2] == "+", true
}

// MatchesPackage reports whether a dependency name denotes this technology.
func (t Technology) MatchesPackage(dep string) bool {
	dep = strings.ToLower(dep)
	for _, p := range t.Packages {
		p = strings.ToLower(p)
		if dep == p {
			return true
		}
		// Go module paths carry major-version suffixes and subpackages.
		if strings.Contains(p, "/") && strings.HasPrefix(dep, p+"/") {
			return true
		}
		// Maven coordinates: group:artifact
		if strings.HasPrefix(dep, p+":") {
			return true
		}
		// JVM imports: group.subpackage.Class
		if strings.Contains(p, ".") && !strings.Contains(p, "/") && strings.HasPrefix(dep, p+".") {
			return true
		}
	}
	return false
}

// MatchesFile reports whether a repository file signals this technology.
func (t Technology) MatchesFile(p string) bool {
	base := path.Base(p)
	ext := path.Ext(p)
	for _, f := range t.Files {
		if strings.HasPrefix(f, ".") {
			if strings.EqualFold(ext, f) {
				return true
			}
			continue
		}
		if strings.EqualFold(base, f) {
			return true
		}
	}
	return false
}

// Pattern names recognised in prose, keyed by canonical name.
var archPatterns = []struct {
	Name     string
	Keywords *regexp.Regexp
}{
	{"microservices", regexp.MustCompile(`(?i)\bmicro-?services?\b|\bservice mesh\b`)},
	{"monolith", regexp.MustCompile(`(?i)\bmonolith(?:ic)?\b`)},
	{"mvc", regexp.MustCompile(`(?i)\bmodel[- ]view[- ]controller\b|\bmvc\b`)},
	{"mvvm", regexp.MustCompile(`(?i)\bmvvm\b|\bmodel[- ]view[- ]viewmodel\b`)},
	{"layered", regexp.MustCompile(`(?i)\blayered architecture\b|\bn-tier\b|\bthree-tier\b|\blayered\b`)},
	{"event-driven", regexp.MustCompile(`(?i)\bevent[- ]driven\b|\bevent sourcing\b|\bcqrs\b`)},
	{"serverless", regexp.MustCompile(`(?i)\bserverless\b|\bfaas\b`)},
	{"hexagonal", regexp.MustCompile(`(?i)\bhexagonal\b|\bports (?:and|&) adapters\b|\bclean architecture\b`)},
}

// ArchitecturePatterns returns the canonical pattern names mentioned in text.
func ArchitecturePatterns(text string) []string {
	var out []string
	for _, p := range archPatterns {
		if p.Keywords.MatchString(text) {
			out = append(out, p.Name)
		}
	}
	return out
}

// PatternAliases maps a pattern named in prose onto the code-side signatures that satisfy it.
var PatternAliases = map[string][]string{
	"microservices": {"microservices", "microservice-per-directory"},
	"monolith":      {"monolith", "layered", "mvc", "go-standard"},
	"layered":       {"layered", "hexagonal", "go-standard"},
	"mvc":           {"mvc"},
	"mvvm":          {"mvvm", "mvc"},
	"event-driven":  {"event-driven"},
	"serverless":    {"serverless"},
	"hexagonal":     {"hexagonal"},
}
