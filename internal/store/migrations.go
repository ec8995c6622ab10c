package store

// The table name and column set match databases created by earlier versions
// of the app, so an existing movies-collection.db opens unchanged.
const schema = `
CREATE TABLE IF NOT EXISTS movies_model (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    title       VARCHAR(250) NOT NULL UNIQUE,
    year        INTEGER NOT NULL,
    description VARCHAR(250) NOT NULL,
    rating      FLOAT UNIQUE,
    ranking     INTEGER,
    review      VARCHAR(250),
    img_url     VARCHAR(250) NOT NULL UNIQUE
);
`
