package driver

import "strings"

// Labels, relationship types and property keys cannot be Cypher parameters, so the
// templates below take them as %s placeholders filled with QuoteIdentifier.
// Element and link ids are the values of id().
const (
	CreateIndexQuery = `CREATE INDEX ON :%s(%s);`

	CreateElementQuery = `
		CREATE (n:%s)
		RETURN id(n) AS id
	`

	GetElementQuery = `
		MATCH (n)
		WHERE id(n) = $id
		RETURN labels(n) AS labels, properties(n) AS props
	`

	GetPropertyQuery = `
		MATCH (n)
		WHERE id(n) = $id
		RETURN n.%s AS value
	`

	SetPropertyQuery = `
		MATCH (n)
		WHERE id(n) = $id
		SET n.%s = $value
		RETURN id(n) AS id
	`

	ReplacePropertiesQuery = `
		MATCH (n)
		WHERE id(n) = $id
		SET n = $props
		RETURN id(n) AS id
	`

	CreateLinkQuery = `
		MATCH (a), (b)
		WHERE id(a) = $from AND id(b) = $to
		CREATE (a)-[r:%s]->(b)
		RETURN id(r) AS id
	`

	DeleteLinkQuery = `
		MATCH ()-[r]->()
		WHERE id(r) = $id
		DELETE r
		RETURN count(*) AS deleted
	`

	OutgoingLinksQuery = `
		MATCH (n)-[r:%s]->(m)
		WHERE id(n) = $id
		RETURN id(r) AS id, id(n) AS from, id(m) AS to
	`

	IncomingLinksQuery = `
		MATCH (m)-[r:%s]->(n)
		WHERE id(n) = $id
		RETURN id(r) AS id, id(m) AS from, id(n) AS to
	`

	IncidentLinksQuery = `
		MATCH (n)-[r]-()
		WHERE id(n) = $id
		RETURN DISTINCT id(r) AS id, type(r) AS relation, id(startNode(r)) AS from, id(endNode(r)) AS to
	`

	FindElementByKeyQuery = `
		MATCH (n:%s)
		WHERE n.%s = $value
		RETURN id(n) AS id, properties(n) AS props
		LIMIT 2
	`

	ElementDegreeQuery = `
		MATCH (n)
		WHERE id(n) = $id
		OPTIONAL MATCH (n)-[r]-()
		RETURN count(r) AS degree
	`

	DeleteElementQuery = `
		MATCH (n)
		WHERE id(n) = $id
		DELETE n
		RETURN count(*) AS deleted
	`
)

// QuoteIdentifier renders name as a backtick-quoted Cypher identifier.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
