package mysql

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_log (
  id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  membership_id VARCHAR(64)  NOT NULL DEFAULT '',
  email         VARCHAR(255) NOT NULL DEFAULT '',
  kind          VARCHAR(32)  NOT NULL,
  outcome       VARCHAR(16)  NOT NULL,
  detail        TEXT         NULL,
  created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (id),
  KEY idx_sync_log_created (created_at),
  KEY idx_sync_log_membership (membership_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

const insertSyncSQL = `
INSERT INTO sync_log (membership_id, email, kind, outcome, detail, created_at)
VALUES (?,?,?,?,?,COALESCE(?, CURRENT_TIMESTAMP))`

const recentSyncSQL = `
SELECT id, membership_id, email, kind, outcome, COALESCE(detail, ''), created_at
FROM sync_log
ORDER BY created_at DESC, id DESC
LIMIT ?`
