package sqlinline

const QCreateGalleryTable = `--sql d39e3988-dc05-45f7-8339-1ce140ce148d
create table if not exists gallery (
  id uuid primary key default gen_random_uuid(),
  url text not null,
  title text not null default 'Generated Ghibli Image',
  created_at timestamptz not null default now(),
  clerk_user_id text not null
);
`

const QCreateGalleryOwnerIndex = `--sql 64c984c8-64b0-435a-8e56-e8f98fe4db6b
create index if not exists gallery_owner_created_idx
  on gallery (clerk_user_id, created_at desc);
`

// Schema lists the DDL statements in the order cmd/migrate applies them.
var Schema = []string{QCreateGalleryTable, QCreateGalleryOwnerIndex}
