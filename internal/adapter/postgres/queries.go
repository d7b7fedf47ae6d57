package postgres

const qInsertOptions = `-- name: InsertOptions
INSERT INTO poll_options (id, text, created_at)
SELECT u.id, u.text, $3
FROM unnest($1::text[], $2::text[]) AS u(id, text)`

const qGetOptions = `-- name: GetOptions
SELECT id, text, votes_count, created_at
FROM poll_options
WHERE id = ANY($1::text[])`

const qIncrementVotes = `-- name: IncrementVotes
UPDATE poll_options SET votes_count = votes_count + 1 WHERE id = $1`

const qResetVotes = `-- name: ResetVotes
UPDATE poll_options SET votes_count = 0 WHERE id = ANY($1::text[])`

const qDeleteOptions = `-- name: DeleteOptions
DELETE FROM poll_options WHERE id = ANY($1::text[])`

const qCountOrphanOptions = `-- name: CountOrphanOptions
SELECT count(*)
FROM poll_options o
WHERE o.created_at < $1
  AND NOT EXISTS (SELECT 1 FROM polls p WHERE p.option_ids @> ARRAY[o.id])`

const qDeleteOrphanOptions = `-- name: DeleteOrphanOptions
DELETE FROM poll_options o
WHERE o.created_at < $1
  AND NOT EXISTS (SELECT 1 FROM polls p WHERE p.option_ids @> ARRAY[o.id])`

const qInsertPoll = `-- name: InsertPoll
INSERT INTO polls (id, title, owner_id, option_ids, is_open, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// A vote does not touch the polls row, so concurrent voters never queue on it;
// the last vote time is folded into updated_at on read.
const pollColumns = `p.id, p.title, p.owner_id, p.option_ids, p.is_open, p.created_at,
       GREATEST(p.updated_at, (SELECT max(v.voted_at) FROM poll_voters v WHERE v.poll_id = p.id))`

const qGetPoll = `-- name: GetPoll
SELECT ` + pollColumns + `
FROM polls p
WHERE p.id = $1`

// FOR SHARE lets voters proceed side by side but makes close, reset and delete wait for them.
const qLockPoll = `-- name: LockPoll
SELECT ` + pollColumns + `
FROM polls p
WHERE p.id = $1
FOR SHARE OF p`

const qGetVoters = `-- name: GetVoters
SELECT voter_id FROM poll_voters WHERE poll_id = $1`

const qAddVoter = `-- name: AddVoter
INSERT INTO poll_voters (poll_id, voter_id, voted_at)
SELECT $1, $2, $3
WHERE EXISTS (SELECT 1 FROM polls WHERE id = $1 AND is_open)
ON CONFLICT (poll_id, voter_id) DO NOTHING`

const qSetOpen = `-- name: SetOpen
UPDATE polls SET is_open = $3, updated_at = $4 WHERE id = $1 AND owner_id = $2`

const qReopenPoll = `-- name: ReopenPoll
UPDATE polls SET is_open = TRUE, updated_at = $3 WHERE id = $1 AND owner_id = $2`

const qClearVoters = `-- name: ClearVoters
DELETE FROM poll_voters WHERE poll_id = $1`

const qDeletePoll = `-- name: DeletePoll
DELETE FROM polls WHERE id = $1 AND owner_id = $2`

const pollFilter = `
WHERE ($1::boolean IS NULL OR p.is_open = $1)
  AND ($2::text = '' OR p.owner_id = $2)`

const qCountPolls = `-- name: CountPolls
SELECT count(*) FROM polls p` + pollFilter

// qListPolls is completed with an ORDER BY clause from listOrder.
const qListPolls = `-- name: ListPolls
SELECT ` + pollColumns + ` AS updated_at,
       (SELECT count(*) FROM poll_voters v WHERE v.poll_id = p.id) AS total_votes
FROM polls p` + pollFilter
